package cruise

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClone(t *testing.T) {
	t.Run("success - clone equals the original and is independent", func(t *testing.T) {
		// arrange
		c := validConfig()
		c.MD5 = "abc"
		c.Partials = []PartialConfig{{Origin: "remote"}}

		// act
		clone, err := Clone(c)

		// assert
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(c, clone, ignoreUnexported()))
		clone.Groups[0].Pipelines[0].Name = "changed"
		clone.Partials[0].Origin = "other"
		assert.Equal(t, "build", c.Groups[0].Pipelines[0].Name)
		assert.Equal(t, "remote", c.Partials[0].Origin)
	})
}

func TestMarshalUnmarshal(t *testing.T) {
	t.Run("success - document survives a round trip", func(t *testing.T) {
		// arrange
		c := validConfig()

		// act
		b, err := Marshal(c)
		require.NoError(t, err)
		parsed, err := Unmarshal(b)

		// assert
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(c, parsed, ignoreUnexported()))
		assert.NotContains(t, string(b), "errs")
	})
	t.Run("success - empty document", func(t *testing.T) {
		// act
		parsed, err := Unmarshal([]byte("  \n"))

		// assert
		require.NoError(t, err)
		assert.Equal(t, CurrentSchemaVersion, parsed.SchemaVersion)
	})
	t.Run("failure - unknown field", func(t *testing.T) {
		// act
		_, err := Unmarshal([]byte("schema_version: 1\nunknown_field: true\n"))

		// assert
		assert.Error(t, err)
	})
}

func TestDigest(t *testing.T) {
	t.Run("success - digest is stable and ignores errors", func(t *testing.T) {
		// arrange
		c := validConfig()
		profile := &c.ElasticProfiles[0]
		before, err := Digest(profile)
		require.NoError(t, err)

		// act
		profile.AddError("id", "something")
		after, err := Digest(profile)

		// assert
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Len(t, before, 32)
	})
	t.Run("success - digest changes with content", func(t *testing.T) {
		// arrange
		c := validConfig()
		before, err := Digest(&c.ElasticProfiles[0])
		require.NoError(t, err)

		// act
		c.ElasticProfiles[0].Properties[0].Value = "ubuntu"
		after, err := Digest(&c.ElasticProfiles[0])

		// assert
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
	})
}

type upperEncrypter struct {
	err error
}

func (e upperEncrypter) Encrypt(s string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "enc:" + strings.ToUpper(s), nil
}

func TestEncryptSecureProperties(t *testing.T) {
	t.Run("success - secure values are encrypted", func(t *testing.T) {
		// arrange
		c := validConfig()
		c.ElasticProfiles[0].Properties = append(c.ElasticProfiles[0].Properties,
			ConfigurationProperty{Key: "Token", Value: "t0k", Secure: true})

		// act
		err := EncryptSecureProperties(c, upperEncrypter{})

		// assert
		require.NoError(t, err)
		v := c.Environments[0].EnvironmentVariables[0]
		assert.Empty(t, v.Value)
		assert.Equal(t, "enc:SECRET", v.EncryptedValue)
		assert.Equal(t, "enc:T0K", c.ElasticProfiles[0].Properties[1].EncryptedValue)
		assert.Equal(t, "alpine", c.ElasticProfiles[0].Properties[0].Value)
	})
	t.Run("failure - encrypter error is returned", func(t *testing.T) {
		// arrange
		c := validConfig()

		// act
		err := EncryptSecureProperties(c, upperEncrypter{err: errors.New("no key")})

		// assert
		assert.Error(t, err)
	})
}
