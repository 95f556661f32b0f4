package types

// DistributionRecord represents a resolved distribution for DynamoDB persistence
type DistributionRecord struct {
	DateKey         string  `json:"dateKey" dynamodbav:"DateKey"`               // YYYY-MM-DD (partition key)
	DistributionID  string  `json:"distributionId" dynamodbav:"DistributionID"` // sort key
	LeadID          string  `json:"leadId" dynamodbav:"LeadID"`
	AgentID         string  `json:"agentId" dynamodbav:"AgentID"`
	RuleID          string  `json:"ruleId" dynamodbav:"RuleID"`
	Strategy        string  `json:"strategy" dynamodbav:"Strategy"`
	Attempt         int     `json:"attempt" dynamodbav:"Attempt"`
	Status          string  `json:"status" dynamodbav:"Status"`
	CreatedAt       string  `json:"createdAt" dynamodbav:"CreatedAt"`   // RFC3339
	ResolvedAt      string  `json:"resolvedAt" dynamodbav:"ResolvedAt"` // RFC3339
	ResponseMinutes float64 `json:"responseMinutes" dynamodbav:"ResponseMinutes"`
	RejectionReason string  `json:"rejectionReason,omitempty" dynamodbav:"RejectionReason"`
	Escalated       bool    `json:"escalated" dynamodbav:"Escalated"`
}

// AgentDailyStats represents an agent's daily distribution outcomes for
// DynamoDB persistence
type AgentDailyStats struct {
	AgentID            string  `json:"agentId" dynamodbav:"AgentID"` // partition key
	Date               string  `json:"date" dynamodbav:"Date"`       // YYYY-MM-DD (sort key)
	Assigned           int     `json:"assigned" dynamodbav:"Assigned"`
	Accepted           int     `json:"accepted" dynamodbav:"Accepted"`
	Rejected           int     `json:"rejected" dynamodbav:"Rejected"`
	Expired            int     `json:"expired" dynamodbav:"Expired"`
	AvgResponseMinutes float64 `json:"avgResponseMinutes" dynamodbav:"AvgResponseMinutes"`
}
