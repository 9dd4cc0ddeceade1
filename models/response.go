package models

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func ErrorResponse(err string) APIResponse {
	return APIResponse{Success: false, Error: err}
}

// FollowResponse reports the follow state after a track request
func FollowResponse(state FollowState) APIResponse {
	msg := "Tracking stopped"
	if state.Following {
		msg = "Tracking " + state.DeviceID
	}
	return APIResponse{Success: true, Data: state, Message: msg}
}
