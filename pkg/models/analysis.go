package models

import "slices"

// AnalysisResult is the normalized plant diagnosis returned to the UI.
// RawResponse is only set when the model reply carried no JSON object.
type AnalysisResult struct {
	PlantIdentified string   `json:"plantIdentified"`
	HealthStatus    string   `json:"healthStatus"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Metrics         Metrics  `json:"metrics"`
	RawResponse     string   `json:"rawResponse,omitempty"`
}

// Metrics holds the model's environmental estimates. Values are free-form
// text ("42%", "27°C"), not parsed units.
type Metrics struct {
	SoilMoisture        string `json:"soilMoisture"`
	Temperature         string `json:"temperature"`
	Sunlight            string `json:"sunlight"`
	EstimatedWaterNeeds string `json:"estimatedWaterNeeds"`
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Issues = slices.Clone(r.Issues)
	out.Recommendations = slices.Clone(r.Recommendations)
	return &out
}

// ImageInput is one user-selected photo.
type ImageInput struct {
	Data     []byte
	MIMEType string
	// Source names where the image came from (file name, URL); used for logging only.
	Source string
}

// Empty reports whether there is no payload to analyze.
func (i ImageInput) Empty() bool {
	return len(i.Data) == 0
}
