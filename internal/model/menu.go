// Package model defines the core data types for the menu service.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

import "time"

// Status tags every component result. Go doesn't have sum types, so a status
// field plus payload fields is the usual stand-in.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusSuccessOCROnly Status = "success_ocr_only"
	StatusError          Status = "error"
)

// MenuResult is what the text extractor + item filter pipeline returns.
type MenuResult struct {
	Status  Status   `json:"status"`
	Items   []string `json:"items"`
	Message string   `json:"message,omitempty"`
}

// MenuSuccess builds a success result. A nil slice is normalised so the
// JSON always carries an array.
func MenuSuccess(items []string) MenuResult {
	if items == nil {
		items = []string{}
	}
	return MenuResult{Status: StatusSuccess, Items: items}
}

// MenuOCROnly is the degraded result used when no language model is configured.
func MenuOCROnly(items []string, message string) MenuResult {
	if items == nil {
		items = []string{}
	}
	return MenuResult{Status: StatusSuccessOCROnly, Items: items, Message: message}
}

// MenuError builds an error result.
func MenuError(message string) MenuResult {
	return MenuResult{Status: StatusError, Items: []string{}, Message: message}
}

// IsError reports whether the result carries a hard failure.
func (r MenuResult) IsError() bool { return r.Status == StatusError }

// DishImageResult is what the query composer + image locator returns.
// URL is a pointer so "no usable result" serialises as null.
type DishImageResult struct {
	Status  Status  `json:"status"`
	URL     *string `json:"url"`
	Message string  `json:"message,omitempty"`
}

// DishImageFound builds a success result; an empty url becomes null.
func DishImageFound(url string) DishImageResult {
	if url == "" {
		return DishImageResult{Status: StatusSuccess}
	}
	return DishImageResult{Status: StatusSuccess, URL: &url}
}

// DishImageError builds an error result.
func DishImageError(message string) DishImageResult {
	return DishImageResult{Status: StatusError, Message: message}
}

func (r DishImageResult) IsError() bool { return r.Status == StatusError }

// ResolvedImage is the terminal artifact of the image proxy.
type ResolvedImage struct {
	ContentType string
	Data        []byte
	SourceURL   string // the URL the bytes actually came from
}

// QuerySource records where a search query came from.
type QuerySource string

const (
	QuerySourceLLM      QuerySource = "llm"
	QuerySourceFallback QuerySource = "fallback"
)

// LLMPurpose distinguishes the two uses of the language model.
type LLMPurpose string

const (
	PurposeFilter LLMPurpose = "filter"
	PurposeQuery  LLMPurpose = "query"
)

// LLMCall tracks each call to an LLM provider for cost monitoring.
type LLMCall struct {
	ID         int64      `db:"id" json:"id"`
	Purpose    LLMPurpose `db:"purpose" json:"purpose"`
	Subject    string     `db:"subject" json:"subject"`
	Provider   string     `db:"provider" json:"provider"`
	Model      string     `db:"model" json:"model"`
	Success    bool       `db:"success" json:"success"`
	Blocked    bool       `db:"blocked" json:"blocked"`
	DurationMs *int64     `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// MenuScan is one audit row per /upload_menu/ call.
type MenuScan struct {
	ID           int64     `db:"id" json:"id"`
	Status       Status    `db:"status" json:"status"`
	Engine       string    `db:"engine" json:"engine"`
	ItemCount    int       `db:"item_count" json:"item_count"`
	OCRChars     int       `db:"ocr_chars" json:"ocr_chars"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DishLookup is one audit row per dish image search.
type DishLookup struct {
	ID           int64       `db:"id" json:"id"`
	Dish         string      `db:"dish" json:"dish"`
	Query        string      `db:"query" json:"query"`
	QuerySource  QuerySource `db:"query_source" json:"query_source"`
	URL          *string     `db:"url" json:"url,omitempty"`
	Status       Status      `db:"status" json:"status"`
	DurationMs   int64       `db:"duration_ms" json:"duration_ms"`
	ErrorMessage *string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}
