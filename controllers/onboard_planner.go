package controllers

// PlanSteps maps the optional pipeline switches to the stages that run.
// Absent switches are off. It makes no remote calls and can run before or
// after the validation gate.
func PlanSteps(flags StepFlags) ExecutionPlan {
	return ExecutionPlan{
		CreateNewCPCode:             isSet(flags.CreateNewCPCode),
		AddSelectedHost:             isSet(flags.AddSelectedHost),
		UpdateMatchTarget:           isSet(flags.UpdateMatchTarget),
		ActivatePropertyStaging:     isSet(flags.ActivatePropertyStaging),
		ActivateWAFPolicyStaging:    isSet(flags.ActivateWAFPolicyStaging),
		ActivatePropertyProduction:  isSet(flags.ActivatePropertyProduction),
		ActivateWAFPolicyProduction: isSet(flags.ActivateWAFPolicyProduction),
	}
}

func isSet(b *bool) bool {
	return b != nil && *b
}

func boolPtr(b bool) *bool {
	return &b
}
