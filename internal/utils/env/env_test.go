package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/comfylaunch/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	t.Setenv("COMFYLAUNCH_TEST_VAR", "from-env")

	tests := map[string]struct {
		specs  []string
		exp    map[string]string
		expErr bool
	}{
		"explicit values should be parsed": {
			specs: []string{"CUDA_VISIBLE_DEVICES=0", "HF_HOME=/data/hf"},
			exp:   map[string]string{"CUDA_VISIBLE_DEVICES": "0", "HF_HOME": "/data/hf"},
		},
		"empty values should be allowed": {
			specs: []string{"EMPTY="},
			exp:   map[string]string{"EMPTY": ""},
		},
		"bare keys should take the current value": {
			specs: []string{"COMFYLAUNCH_TEST_VAR"},
			exp:   map[string]string{"COMFYLAUNCH_TEST_VAR": "from-env"},
		},
		"unset bare keys should fail": {
			specs:  []string{"COMFYLAUNCH_TEST_MISSING_VAR"},
			expErr: true,
		},
		"invalid keys should fail": {
			specs:  []string{"1BAD=x"},
			expErr: true,
		},
		"empty specs should fail": {
			specs:  []string{""},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := env.ParseSpecs(test.specs)

			if test.expErr {
				assert.Error(t, err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.exp, got)
			}
		})
	}
}

func TestMergeMaps(t *testing.T) {
	got := env.MergeMaps(map[string]string{"A": "1", "B": "2"}, map[string]string{"B": "3"})

	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, got)
	assert.Equal(t, map[string]string{}, env.MergeMaps(nil, nil))
}

func TestEnviron(t *testing.T) {
	assert.Nil(t, env.Environ(nil))
	assert.Equal(t, []string{"A=1", "B=", "C=x=y"}, env.Environ(map[string]string{"C": "x=y", "A": "1", "B": ""}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, env.Validate(map[string]string{"PYTHONUNBUFFERED": "1"}))
	assert.Error(t, env.Validate(map[string]string{"BAD-KEY": "1"}))
}
