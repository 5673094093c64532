package csvinput

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadDeliveryRows(t *testing.T) {
	path := writeCSV(t, "\ufeffhostname,origin,propertyName,forwardHostHeader,edgeHostname\n"+
		"www.example.com,origin.example.com,shop,,www.example.com.edgekey.net\n"+
		"\n"+
		"api.example.com, api-origin.example.com ,shop,ORIGIN_HOSTNAME,\n")

	rows, err := ReadDeliveryRows(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, DeliveryRow{
		Line:         1,
		Hostname:     "www.example.com",
		Origin:       "origin.example.com",
		PropertyName: "shop",
		EdgeHostname: "www.example.com.edgekey.net",
	}, rows[0])
	assert.Equal(t, 2, rows[1].Line)
	assert.Equal(t, "api-origin.example.com", rows[1].Origin)
	assert.Equal(t, ForwardOriginHostname, rows[1].ForwardHostHeader)
}

func TestReadDeliveryRowsMinimalColumns(t *testing.T) {
	path := writeCSV(t, "hostname,origin\nwww.example.com,origin.example.com\n")

	rows, err := ReadDeliveryRows(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].PropertyName)
	assert.Empty(t, rows[0].EdgeHostname)
}

func TestReadDeliveryRowsMissingColumn(t *testing.T) {
	path := writeCSV(t, "hostname,propertyName\nwww.example.com,shop\n")

	_, err := ReadDeliveryRows(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "origin column")
}

func TestReadDeliveryRowsEmptyFile(t *testing.T) {
	_, err := ReadDeliveryRows(context.Background(), writeCSV(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestValidateDeliveryRows(t *testing.T) {
	rows := []DeliveryRow{
		{Line: 1, Hostname: "www.example.com", Origin: "origin.example.com"},
		{Line: 2, Hostname: "api.example.com", Origin: ""},
		{Line: 3, Hostname: "img.example.com", Origin: "origin.example.com", ForwardHostHeader: "CUSTOM"},
		{Line: 4, Hostname: "cdn.example.com", Origin: "origin.example.com", EdgeHostname: "cdn.example.com.akamaized.net"},
		{Line: 5, Hostname: "m.example.com", Origin: "origin.example.com", ForwardHostHeader: ForwardRequestHostHeader, EdgeHostname: "m.example.com.edgesuite.net"},
	}

	errs := ValidateDeliveryRows(rows)
	require.Len(t, errs, 3)

	assert.Equal(t, 2, errs[0].Line)
	assert.Contains(t, errs[0].Error(), "origin")
	assert.Equal(t, 3, errs[1].Line)
	assert.Contains(t, errs[1].Error(), "forwardHostHeader")
	assert.Equal(t, 4, errs[2].Line)
	assert.Contains(t, errs[2].Error(), "edgeHostname")
}

func TestReadAppsecRows(t *testing.T) {
	path := writeCSV(t, "hostname,matchTargetId\nwww.example.com,3344\napi.example.com,\n")

	rows, err := ReadAppsecRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, AppsecRow{Line: 1, Hostname: "www.example.com", MatchTargetID: 3344}, rows[0])

	errs := ValidateAppsecRows(rows)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Line)
}

func TestReadAppsecRowsBadTargetID(t *testing.T) {
	path := writeCSV(t, "hostname,matchTargetId\nwww.example.com,abc\n")

	_, err := ReadAppsecRows(path)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Line)
}

func TestGroupByProperty(t *testing.T) {
	rows := []DeliveryRow{
		{Line: 1, Hostname: "www.example.com", Origin: "o1.example.com", PropertyName: "shop"},
		{Line: 2, Hostname: "blog.example.com", Origin: "o2.example.com"},
		{Line: 3, Hostname: "api.example.com", Origin: "o3.example.com", PropertyName: "shop", ForwardHostHeader: ForwardOriginHostname, EdgeHostname: "shop.example.com.edgekey.net"},
	}

	groups, err := GroupByProperty(rows, GroupOptions{SecureByDefault: true, EdgeHostnameSuffix: ".edgekey.net"})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, PropertyGroup{
		PropertyName:       "shop",
		Hostnames:          []string{"www.example.com", "api.example.com"},
		Origins:            []string{"o1.example.com", "o3.example.com"},
		ForwardHostHeaders: []string{ForwardRequestHostHeader, ForwardOriginHostname},
		EdgeHostnames:      []string{"www.example.com.edgekey.net", "shop.example.com.edgekey.net"},
	}, groups[0])
	assert.Equal(t, "blog.example.com", groups[1].PropertyName)
}

func TestGroupByPropertyRequiresEdgeHostname(t *testing.T) {
	rows := []DeliveryRow{
		{Line: 1, Hostname: "www.example.com", Origin: "o1.example.com", EdgeHostname: "www.example.com.edgesuite.net"},
		{Line: 2, Hostname: "api.example.com", Origin: "o2.example.com"},
	}

	_, err := GroupByProperty(rows, GroupOptions{})
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Line)
}

func TestGroupByPropertyRejectsDuplicates(t *testing.T) {
	rows := []DeliveryRow{
		{Line: 1, Hostname: "www.example.com", Origin: "o1.example.com"},
		{Line: 2, Hostname: "www.example.com", Origin: "o2.example.com"},
	}

	_, err := GroupByProperty(rows, GroupOptions{SecureByDefault: true, EdgeHostnameSuffix: ".edgesuite.net"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate hostname")
}
