package cruise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess(t *testing.T) {
	t.Run("success - template stages are expanded and params substituted", func(t *testing.T) {
		// arrange
		c := validConfig()

		// act
		err := Preprocess(c)

		// assert
		require.NoError(t, err)
		service := c.PipelineConfigByName("service")
		require.Len(t, service.Stages, 1)
		assert.Equal(t, "test", service.Stages[0].Name)
		assert.Equal(t, []string{"service"}, service.Stages[0].Jobs[0].Tasks[0].Args)
		assert.Equal(t, "https://example.com/service.git", service.Materials[0].URL)
		assert.Equal(t, []string{"#{target}"}, c.Templates[0].Stages[0].Jobs[0].Tasks[0].Args)
		assert.True(t, ValidateTree(c), AllErrors(c))
	})
	t.Run("failure - undefined parameter is reported on the pipeline", func(t *testing.T) {
		// arrange
		c := validConfig()
		c.PipelineConfigByName("service").Params = nil

		// act
		err := Preprocess(c)

		// assert
		require.NoError(t, err)
		errs := c.PipelineConfigByName("service").Errors().On("params")
		require.NotEmpty(t, errs)
		assert.Contains(t, errs[0], "Parameter 'target' is not defined.")
	})
	t.Run("success - preprocessing twice keeps template stages", func(t *testing.T) {
		// arrange
		c := validConfig()
		require.NoError(t, Preprocess(c))
		clone, err := Clone(c)
		require.NoError(t, err)

		// act
		err = Preprocess(clone)

		// assert
		require.NoError(t, err)
		assert.True(t, ValidateTree(clone), AllErrors(clone))
	})
}

func TestSubstituteParams(t *testing.T) {
	lookup := func(name string) (string, bool) {
		values := map[string]string{"env": "prod", "region": "eu"}
		v, ok := values[name]
		return v, ok
	}
	cases := []struct {
		name     string
		in       string
		expected string
		fails    bool
	}{
		{"no params", "plain", "plain", false},
		{"single param", "deploy-#{env}", "deploy-prod", false},
		{"two params", "#{env}/#{region}", "prod/eu", false},
		{"escaped hash", "issue ##12", "issue #12", false},
		{"escaped before param", "###{env}", "#prod", false},
		{"undefined", "#{zone}", "", true},
		{"unclosed", "#{env", "", true},
		{"empty name", "#{}", "", true},
		{"dangling hash", "a#b", "", true},
		{"trailing hash", "a#", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := substituteParams(tc.in, lookup)
			if tc.fails {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}
}
