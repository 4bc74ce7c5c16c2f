package model

// UploadPresenterResponse represents the response for a presenter image upload
type UploadPresenterResponse struct {
	Success        bool   `json:"success"`
	Filename       string `json:"filename"`
	SuggestedVoice Voice  `json:"suggested_voice"`
	Gender         Gender `json:"gender"`
}
