package model

// GenerateScriptRequest represents the request body for POST /generate-script
type GenerateScriptRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
}

// GenerateScriptResponse carries a synchronously generated script
type GenerateScriptResponse struct {
	Success bool   `json:"success"`
	Script  string `json:"script"`
	Topic   string `json:"topic"`
}

// VoiceInfo describes one selectable narration voice
type VoiceInfo struct {
	Key  Voice  `json:"key"`
	Name string `json:"name"`
}

// VoicesResponse lists the voice catalogue
type VoicesResponse struct {
	Default Voice       `json:"default"`
	Voices  []VoiceInfo `json:"voices"`
}
