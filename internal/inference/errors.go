package inference

import "fmt"

const (
	connectivityMessage     = "Cannot connect to API server. Please ensure the backend is running."
	modelUnavailableMessage = "API is available but model is not properly loaded"
	genericPredictionError  = GenericPredictionMessage
)

// ConnectivityError means the health endpoint was unreachable, answered
// with a non-2xx status, or returned a body that could not be parsed.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return connectivityMessage
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// ModelUnavailableError means the backend answered but is not serving a model.
type ModelUnavailableError struct {
	Status      string
	ModelLoaded bool
}

func (e *ModelUnavailableError) Error() string {
	return modelUnavailableMessage
}

// PredictionError is a failed POST /predict. StatusCode is zero when no
// response arrived at all.
type PredictionError struct {
	StatusCode int
	Detail     string
	Err        error
}

// Message is the banner text shown to the user.
func (e *PredictionError) Message() string {
	switch {
	case e.Detail != "":
		return "Prediction failed: " + e.Detail
	case e.StatusCode >= 300:
		return fmt.Sprintf("Prediction failed: Request failed with status code %d", e.StatusCode)
	default:
		return genericPredictionError
	}
}

func (e *PredictionError) Error() string {
	return e.Message()
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// GenericPredictionMessage is shown when a prediction failed without any
// server-provided explanation.
const GenericPredictionMessage = "Prediction failed. Please try again."
