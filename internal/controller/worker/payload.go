package worker

// metadataPayload is the domain payload of a metadata-bearing envelope;
// the field name travels as the metadata_type attribute.
type metadataPayload struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// statusPayload is the domain payload of a moderation decision.
type statusPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
