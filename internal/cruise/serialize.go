package cruise

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-yaml"
)

func Marshal(c *CruiseConfig) ([]byte, error) {
	return yaml.Marshal(c)
}

// Unmarshal parses a configuration document, rejecting unknown fields.
func Unmarshal(b []byte) (*CruiseConfig, error) {
	c := NewCruiseConfig()
	if len(bytes.TrimSpace(b)) == 0 {
		return c, nil
	}
	if err := yaml.UnmarshalWithOptions(b, c, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return c, nil
}

func MD5Of(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Digest fingerprints a config entity by its canonical YAML form. Errors
// recorded on the entity do not affect the digest.
func Digest(entity any) (string, error) {
	b, err := yaml.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("computing digest: %w", err)
	}
	return MD5Of(b), nil
}

// Clone deep-copies c. Errors are not copied.
func Clone(c *CruiseConfig) (*CruiseConfig, error) {
	b, err := Marshal(c)
	if err != nil {
		return nil, err
	}
	out := NewCruiseConfig()
	if err := yaml.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("cloning configuration: %w", err)
	}
	if c.Partials != nil {
		if out.Partials, err = deepCopy(c.Partials); err != nil {
			return nil, err
		}
	}
	out.MD5 = c.MD5
	src, dst := c.AllPipelines(), out.AllPipelines()
	for i := 0; i < len(src) && i < len(dst); i++ {
		dst[i].templateApplied = src[i].templateApplied
	}
	return out, nil
}

// ClonePipeline deep-copies p as it would be written to the file.
func ClonePipeline(p *PipelineConfig) (*PipelineConfig, error) {
	out, err := deepCopy(*p)
	if err != nil {
		return nil, fmt.Errorf("cloning pipeline %s: %w", p.Name, err)
	}
	return &out, nil
}

func deepCopy[T any](v T) (T, error) {
	var out T
	b, err := yaml.Marshal(v)
	if err != nil {
		return out, err
	}
	err = yaml.Unmarshal(b, &out)
	return out, err
}

// Encrypter encrypts secure values before they are persisted.
type Encrypter interface {
	Encrypt(string) (string, error)
}

// EncryptSecureProperties moves the plain value of every secure variable
// and property into its encrypted value.
func EncryptSecureProperties(root Validatable, enc Encrypter) error {
	var err error
	switch n := root.(type) {
	case *EnvironmentVariable:
		if n.Secure && n.Value != "" {
			if n.EncryptedValue, err = enc.Encrypt(n.Value); err != nil {
				return fmt.Errorf("encrypting variable %s: %w", n.Name, err)
			}
			n.Value = ""
		}
	case *ConfigurationProperty:
		if n.Secure && n.Value != "" {
			if n.EncryptedValue, err = enc.Encrypt(n.Value); err != nil {
				return fmt.Errorf("encrypting property %s: %w", n.Key, err)
			}
			n.Value = ""
		}
	}
	for _, child := range root.Children() {
		if err := EncryptSecureProperties(child, enc); err != nil {
			return err
		}
	}
	return nil
}
