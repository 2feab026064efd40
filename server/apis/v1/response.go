package v1

type APIResponse struct {
	// ErrMessage provides more detailed error information. If the API call
	// succeeds, ErrMessage is nil.
	ErrMessage *string `json:"errMessage,omitempty"`
	// Data is the response body.
	Data interface{} `json:"data"`
}

// NewAPIResponse creates a new APIResponse.
func NewAPIResponse(errMessage *string, data interface{}) APIResponse {
	return APIResponse{
		ErrMessage: errMessage,
		Data:       data,
	}
}
