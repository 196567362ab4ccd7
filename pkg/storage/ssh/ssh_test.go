package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamokano/tddf_uploader/pkg/storage"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "defaults",
			cfg: storage.Config{
				BaseDir: "/srv/tddf",
				Options: map[string]interface{}{"host": "archive.local", "user": "mms", "password": "secret"},
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 22, c.Port)
				assert.Equal(t, "/srv/tddf", c.RemotePath)
			},
		},
		{
			name: "explicit_port_and_path",
			cfg: storage.Config{
				Options: map[string]interface{}{
					"host": "archive.local", "user": "mms", "password": "secret",
					"port": float64(2222), "remote_path": "/data",
				},
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 2222, c.Port)
				assert.Equal(t, "/data", c.RemotePath)
			},
		},
		{
			name:    "missing_host",
			cfg:     storage.Config{BaseDir: "/x", Options: map[string]interface{}{"user": "mms"}},
			wantErr: true,
		},
		{
			name:    "missing_remote_path",
			cfg:     storage.Config{Options: map[string]interface{}{"host": "h", "user": "u"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseConfig(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestClientConfig_RequiresAuth(t *testing.T) {
	_, err := (&Config{User: "mms"}).clientConfig()
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)

	cc, err := (&Config{User: "mms", Password: "secret"}).clientConfig()
	require.NoError(t, err)
	assert.Len(t, cc.Auth, 1)
}
