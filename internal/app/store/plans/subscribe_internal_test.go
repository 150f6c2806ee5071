package planstore

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsChangeStreamUnsupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection refused"), false},
		{"standalone code", mongo.CommandError{Code: 40573, Message: "The $changeStream stage is only supported on replica sets"}, true},
		{"not implemented code", mongo.CommandError{Code: 115, Message: "CommandNotSupported"}, true},
		{"other code", mongo.CommandError{Code: 13, Message: "Unauthorized"}, false},
		{"message only", errors.New("$changeStream stage is only supported on replica sets"), true},
		{"documentdb message", errors.New("ChangeStream is not supported on this cluster"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isChangeStreamUnsupported(tt.err); got != tt.want {
				t.Errorf("isChangeStreamUnsupported(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
