package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QdrantConfig
		wantErr bool
	}{
		{"valid", QdrantConfig{Host: "localhost", Port: 6334, Collection: "uk_legislation", VectorSize: 384}, false},
		{"missing host", QdrantConfig{Port: 6334, Collection: "uk_legislation", VectorSize: 384}, true},
		{"bad port", QdrantConfig{Host: "localhost", Port: 70000, Collection: "uk_legislation", VectorSize: 384}, true},
		{"zero vector size", QdrantConfig{Host: "localhost", Port: 6334, Collection: "uk_legislation"}, true},
		{"bad collection", QdrantConfig{Host: "localhost", Port: 6334, Collection: "UK Legislation", VectorSize: 384}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQdrantConfigApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(status.Error(codes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(codes.DeadlineExceeded, "slow")))
	assert.True(t, IsTransientError(status.Error(codes.ResourceExhausted, "busy")))
	assert.False(t, IsTransientError(status.Error(codes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(errors.New("not a grpc error")))
}
