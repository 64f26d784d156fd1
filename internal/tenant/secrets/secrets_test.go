package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	id "siva/pkg/domain"
)

type SecretsSuite struct {
	suite.Suite
}

func TestSecretsSuite(t *testing.T) {
	suite.Run(t, new(SecretsSuite))
}

// TestGenerate verifies secrets are random and carry enough entropy.
func (s *SecretsSuite) TestGenerate() {
	first, err := Generate()
	s.Require().NoError(err)
	second, err := Generate()
	s.Require().NoError(err)

	s.NotEqual(first, second)

	decoded, err := base64.RawURLEncoding.DecodeString(first)
	s.Require().NoError(err)
	s.Len(decoded, 32)
}

// TestHashAndVerify verifies the bcrypt round trip and its failure modes.
func (s *SecretsSuite) TestHashAndVerify() {
	s.Run("hashed secret verifies", func() {
		secret, err := Generate()
		s.Require().NoError(err)

		hash, err := Hash(secret)
		s.Require().NoError(err)
		s.NotEqual(secret, hash)

		s.NoError(Verify(secret, hash))
	})

	s.Run("wrong secret is rejected", func() {
		hash, err := Hash("correct-secret")
		s.Require().NoError(err)

		err = Verify("wrong-secret", hash)
		s.Require().Error(err)
		s.Contains(err.Error(), "invalid secret")
	})

	s.Run("empty secret cannot be hashed", func() {
		_, err := Hash("")
		s.Require().Error(err)
		s.Contains(err.Error(), "secret cannot be empty")
	})

	s.Run("secret over bcrypt limit is rejected", func() {
		_, err := Hash(strings.Repeat("a", 100))
		s.Require().Error(err)
		s.Contains(err.Error(), "too long")
	})
}

// TestFormatAndParse verifies the sk_<key id>_<secret> wire format.
func (s *SecretsSuite) TestFormatAndParse() {
	s.Run("round-trips a generated secret", func() {
		keyID := id.NewAPIKeyID()
		secret, err := Generate()
		s.Require().NoError(err)

		presented := FormatAPIKey(keyID, secret)
		s.True(strings.HasPrefix(presented, "sk_"))

		parsedID, parsedSecret, err := ParseAPIKey(presented)
		s.Require().NoError(err)
		s.Equal(keyID, parsedID)
		s.Equal(secret, parsedSecret)
	})

	s.Run("survives underscores in the secret", func() {
		keyID := id.NewAPIKeyID()

		parsedID, parsedSecret, err := ParseAPIKey(FormatAPIKey(keyID, "with_under_scores"))
		s.Require().NoError(err)
		s.Equal(keyID, parsedID)
		s.Equal("with_under_scores", parsedSecret)
	})

	s.Run("tolerates surrounding whitespace", func() {
		keyID := id.NewAPIKeyID()

		parsedID, _, err := ParseAPIKey("  " + FormatAPIKey(keyID, "secret") + "\n")
		s.Require().NoError(err)
		s.Equal(keyID, parsedID)
	})

	s.Run("rejects malformed credentials", func() {
		malformed := []string{
			"",
			"sk_",
			"sk_only-two-parts",
			"ak_550e8400-e29b-41d4-a716-446655440000_secret",
			"sk_not-a-uuid_secret",
			"sk_550e8400-e29b-41d4-a716-446655440000_",
			"sk_00000000-0000-0000-0000-000000000000_secret",
		}
		for _, input := range malformed {
			_, _, err := ParseAPIKey(input)
			s.Require().Error(err, "input %q should be rejected", input)
			s.Contains(err.Error(), "malformed API key")
		}
	})
}
