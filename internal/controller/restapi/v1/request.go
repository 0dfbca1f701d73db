package v1

type metadataRequest struct {
	Type  string `json:"type" example:"Caption"`
	Value string `json:"value" example:"sunset over the bay"`
}

type statusRequest struct {
	Status string `json:"status" example:"REJECTED"`
	Reason string `json:"reason,omitempty" example:"blurry"`
}
