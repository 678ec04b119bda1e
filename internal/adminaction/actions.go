package adminaction

type ActionType string

const (
	ActionApproveStageChange ActionType = "APPROVE_STAGE_CHANGE"
	ActionRejectStageChange  ActionType = "REJECT_STAGE_CHANGE"
)
