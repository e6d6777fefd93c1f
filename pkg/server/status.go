package server

import (
	"errors"
	"net/http"

	"github.com/ivikasavnish/go-flowrec/pkg/capture"
	"github.com/ivikasavnish/go-flowrec/pkg/codegen"
	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/controller"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/export"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
	"github.com/ivikasavnish/go-flowrec/pkg/recorder"
)

var badRequest = []error{
	controller.ErrUnknownAction,
	controller.ErrMissingIndex,
	controller.ErrMissingCommand,
	controller.ErrNoCommands,
	controller.ErrBadDestination,
	codegen.ErrUnknownTarget,
	debugger.ErrOutOfRange,
	flowstore.ErrInvalidName,
	flowstore.ErrInvalidID,
	export.ErrEmptyName,
	command.ErrEmptySelector,
	command.ErrEmptyKey,
	command.ErrBadAmount,
	command.ErrBadDirection,
	command.ErrBadWait,
	command.ErrNilCommand,
}

var conflict = []error{
	controller.ErrRecording,
	controller.ErrNotRecording,
	controller.ErrDebuggerOpen,
	controller.ErrNoDebugger,
	debugger.ErrBusy,
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var (
		te  *recorder.TransitionError
		ce  *capture.CaptureError
		sre *debugger.SelectorResolutionError
		to  *debugger.TimeoutError
		uk  *command.UnknownKindError
		um  *command.UnknownModifierError
		pe  *codegen.ParseError
	)
	switch {
	case errors.Is(err, flowstore.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrNoStore), errors.Is(err, controller.ErrNoExporter), errors.Is(err, export.ErrNoClipboard):
		return http.StatusNotImplemented
	case errors.As(err, &te):
		return http.StatusConflict
	case errors.As(err, &sre), errors.As(err, &to):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ce):
		return http.StatusBadGateway
	case errors.As(err, &uk), errors.As(err, &um), errors.As(err, &pe):
		return http.StatusBadRequest
	}
	for _, target := range conflict {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
