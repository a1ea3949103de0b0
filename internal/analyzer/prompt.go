package analyzer

import (
	"encoding/base64"
	"strings"

	"go-plant-analyzer/pkg/models"
)

const defaultMIMEType = "image/jpeg"

// Instructions are sent in this order ahead of the image.
var Instructions = []string{
	"Analyze this plant image and provide information about:",
	"1. What plant is this?",
	"2. Is it healthy or showing signs of stress?",
	"3. What issues can you identify?",
	"4. What recommendations would you give for its care?",
	"5. Estimate environmental conditions based on appearance.",
	"Format the response as a JSON object with these fields: plantIdentified, healthStatus, " +
		"issues (array), recommendations (array), metrics (object with soilMoisture, temperature, " +
		"sunlight, estimatedWaterNeeds)",
}

// BuildRequest base64-encodes the payload and attaches the fixed prompt.
func BuildRequest(img models.ImageInput) GenerateRequest {
	mimeType := strings.TrimSpace(img.MIMEType)
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return GenerateRequest{
		Instructions: append([]string(nil), Instructions...),
		Image: InlineImage{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		},
	}
}
