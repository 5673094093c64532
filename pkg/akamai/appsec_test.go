package akamai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSecurityConfiguration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appsec/v1/configs", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"configurations":[
			{"id":1,"name":"other","latestVersion":3},
			{"id":42,"name":"shop-waf","latestVersion":7,"stagingVersion":6,"productionVersion":5}
		]}`)
	})

	cfg, err := c.FindSecurityConfiguration(context.Background(), "shop-waf")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.ID)
	assert.Equal(t, 7, cfg.LatestVersion)
	assert.Equal(t, 5, cfg.ProductionVersion)

	_, err = c.FindSecurityConfiguration(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSecurityConfigurationUsesBareIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "C-1", body["contractId"])
		assert.Equal(t, float64(15225), body["groupId"])
		assert.Equal(t, []interface{}{"www.example.com"}, body["hostnames"])
		writeJSON(w, http.StatusOK, `{"configId":42,"version":1}`)
	})

	configID, version, err := c.CreateSecurityConfiguration(context.Background(), SecurityConfigSpec{
		Name:       "shop-waf",
		ContractID: "ctr_C-1",
		GroupID:    "grp_15225",
		Hostnames:  []string{"www.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, configID)
	assert.Equal(t, 1, version)
}

func TestListSelectableHostnames(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appsec/v1/contracts/C-1/groups/15225/selectable-hostnames", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"availableSet":[{"hostname":"WWW.Example.com"},{"hostname":"api.example.com"}]}`)
	})

	hostnames, err := c.ListSelectableHostnames(context.Background(), "ctr_C-1", "grp_15225")
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "api.example.com"}, hostnames)
}

func TestSelectedHostnames(t *testing.T) {
	var written []interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appsec/v1/configs/42/versions/8/selected-hostnames", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `{"hostnameList":[{"hostname":"www.example.com"}]}`)
		case http.MethodPut:
			var body map[string][]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			written = body["hostnameList"]
			writeJSON(w, http.StatusOK, `{}`)
		}
	})

	hostnames, err := c.GetSelectedHostnames(context.Background(), 42, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com"}, hostnames)

	require.NoError(t, c.UpdateSelectedHostnames(context.Background(), 42, 8, []string{"www.example.com", "api.example.com"}))
	assert.Len(t, written, 2)
}

func TestUpdateMatchTargetKeepsOtherFields(t *testing.T) {
	var putBody map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appsec/v1/configs/42/versions/8/match-targets/5", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `{"targetId":5,"sequence":1,"type":"website",
				"hostnames":["www.example.com","old.example.com"],
				"filePaths":["/*"],"bypassNetworkLists":[{"id":"1234_BYPASS"}],
				"securityPolicy":{"policyId":"shop_1"}}`)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			writeJSON(w, http.StatusOK, `{}`)
		}
	})

	target, err := c.GetMatchTarget(context.Background(), 42, 8, 5)
	require.NoError(t, err)
	assert.False(t, target.TargetsAllHostnames())
	assert.Equal(t, "shop_1", target.PolicyID)

	target.Hostnames = []string{"www.example.com"}
	require.NoError(t, c.UpdateMatchTarget(context.Background(), 42, 8, target))

	assert.JSONEq(t, `["www.example.com"]`, string(putBody["hostnames"]))
	assert.JSONEq(t, `[{"id":"1234_BYPASS"}]`, string(putBody["bypassNetworkLists"]))
	assert.JSONEq(t, `["/*"]`, string(putBody["filePaths"]))
	assert.JSONEq(t, `{"policyId":"shop_1"}`, string(putBody["securityPolicy"]))
}

func TestCreateMatchTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appsec/v1/configs/42/versions/8/match-targets", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "website", body["type"])
		assert.Equal(t, []interface{}{"www.example.com"}, body["hostnames"])
		assert.Equal(t, map[string]interface{}{"policyId": "shop_1"}, body["securityPolicy"])
		writeJSON(w, http.StatusCreated, `{"targetId":77,"type":"website","hostnames":["www.example.com"],
			"securityPolicy":{"policyId":"shop_1"}}`)
	})

	target, err := c.CreateMatchTarget(context.Background(), 42, 8, "shop_1", []string{"www.example.com"})
	require.NoError(t, err)
	assert.Equal(t, 77, target.TargetID)
	assert.Equal(t, "shop_1", target.PolicyID)
	assert.Equal(t, []string{"www.example.com"}, target.Hostnames)
}

func TestSecurityPolicies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appsec/v1/configs/42/versions/8/security-policies", r.URL.Path)
		switch r.Method {
		case http.MethodPost:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "shop", body["policyName"])
			assert.Equal(t, "shop", body["policyPrefix"])
			assert.Equal(t, true, body["defaultSettings"])
			writeJSON(w, http.StatusOK, `{"configId":42,"version":8,"policyId":"shop_123","policyName":"shop"}`)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `{"configId":42,"version":8,"policies":[{"policyId":"shop_123","policyName":"shop"}]}`)
		}
	})

	policy, err := c.CreateSecurityPolicy(context.Background(), 42, 8, "shop", "shop")
	require.NoError(t, err)
	assert.Equal(t, &SecurityPolicy{PolicyID: "shop_123", PolicyName: "shop"}, policy)

	policies, err := c.ListSecurityPolicies(context.Background(), 42, 8)
	require.NoError(t, err)
	assert.Equal(t, []SecurityPolicy{{PolicyID: "shop_123", PolicyName: "shop"}}, policies)
}

func TestCreateSecurityConfigVersion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/appsec/v1/configs/42/versions", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["createFromVersion"])
		assert.Equal(t, false, body["ruleUpdate"])
		writeJSON(w, http.StatusCreated, `{"configId":42,"version":8,"basedOn":7}`)
	})

	version, err := c.CreateSecurityConfigVersion(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, 8, version)
}

func TestGetSecurityConfiguration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/appsec/v1/configs/42":
			writeJSON(w, http.StatusOK, `{"id":42,"name":"shop-waf","latestVersion":7}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"type":"not-found","title":"Not Found","detail":"config not found"}`)
		}
	})

	name, err := c.GetSecurityConfigurationName(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "shop-waf", name)

	_, err = c.GetSecurityConfiguration(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppSecRetriesRateLimitedCalls(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeJSON(w, http.StatusTooManyRequests, `{"title":"Too many requests"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"hostnameList":[{"hostname":"www.example.com"}]}`)
	})

	hostnames, err := c.GetSelectedHostnames(context.Background(), 42, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com"}, hostnames)
	assert.Equal(t, 2, calls)
}

func TestMatchTargetWithoutHostnamesTargetsAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"matchTargets":{"websiteTargets":[
			{"targetId":5,"sequence":1,"filePaths":["/*"],"securityPolicy":{"policyId":"shop_1"}},
			{"targetId":6,"sequence":2,"hostnames":["api.example.com"],"securityPolicy":{"policyId":"api_1"}}
		]}}`)
	})

	targets, err := c.ListMatchTargets(context.Background(), 42, 8)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.True(t, targets[0].TargetsAllHostnames())
	assert.False(t, targets[1].TargetsAllHostnames())
	assert.Equal(t, []string{"api.example.com"}, targets[1].Hostnames)
}

func TestActivateSecurityConfiguration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Equal(t, "/appsec/v1/activations/9001", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"activationId":9001,"status":"RECEIVED","network":"STAGING"}`)
			return
		}
		assert.Equal(t, "/appsec/v1/activations", r.URL.Path)
		var body struct {
			Action            string `json:"action"`
			Network           string `json:"network"`
			ActivationConfigs []struct {
				ConfigID      int `json:"configId"`
				ConfigVersion int `json:"configVersion"`
			} `json:"activationConfigs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ACTIVATE", body.Action)
		assert.Equal(t, "STAGING", body.Network)
		require.Len(t, body.ActivationConfigs, 1)
		assert.Equal(t, 42, body.ActivationConfigs[0].ConfigID)
		assert.Equal(t, 8, body.ActivationConfigs[0].ConfigVersion)
		writeJSON(w, http.StatusOK, `{"activationId":9001,"status":"RECEIVED"}`)
	})

	id, err := c.ActivateSecurityConfiguration(context.Background(), WAFActivationSpec{
		ConfigID: 42,
		Version:  8,
		Network:  NetworkStaging,
		Note:     "Onboard CLI Activation",
	})
	require.NoError(t, err)
	assert.Equal(t, 9001, id)
}

func TestActivateSecurityConfigurationConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"type":"https://problems.luna.akamaiapis.net/appsec/error-types/INVALID-INPUT-ERROR",
			"title":"Invalid Input Error","detail":"MultipleConfigs: hostnames belong to config 1234"}`)
	})

	_, err := c.ActivateSecurityConfiguration(context.Background(), WAFActivationSpec{ConfigID: 42, Version: 8, Network: NetworkProduction})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "MultipleConfigs: hostnames belong to config 1234", ErrorDetail(err))
}

func TestGetSecurityActivationStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appsec/v1/activations/9001", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"activationId":9001,"status":"ACTIVATED","network":"PRODUCTION"}`)
	})

	status, err := c.GetSecurityActivationStatus(context.Background(), 9001)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVATED", status)
}
