package transition

type Policy struct {
	ReasonRequired   bool `json:"reason_required"`
	RequiresApproval bool `json:"requires_approval"`
}

// Gate: regressions need admin approval; regressions and backdated moves both need a reason.
func Gate(c Classification) Policy {
	return Policy{
		ReasonRequired:   c.IsRegression || c.IsBackdated,
		RequiresApproval: c.IsRegression,
	}
}
