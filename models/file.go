package models

import "time"

// File is an uploaded document. StorageKey locates the original bytes in
// the object store; Filename keeps the name as uploaded.
type File struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"-"`
	Filename        string    `json:"filename"`
	StorageKey      string    `json:"-"`
	StorageURL      string    `json:"storage_url"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
}

// AIResponse is the model output for exactly one File.
type AIResponse struct {
	ID                int64     `json:"id"`
	FileID            int64     `json:"-"`
	ResponseText      string    `json:"response_text"`
	AnalysisTimestamp time.Time `json:"analysis_timestamp"`
}

// FileWithResponse is the API shape for history and analyze results.
// AIResponse is null when no analysis was stored.
type FileWithResponse struct {
	File
	AIResponse *AIResponse `json:"ai_response"`
}
