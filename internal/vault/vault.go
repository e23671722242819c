package vault

import (
	"fmt"
	"os"
)

// VaultClient resolves the credentials used for API calls and clones.
type VaultClient interface {
	GetGitHubCredentials() (*GitHubCredentials, error)
}

type GitHubCredentials struct {
	Username string
	Token    string
}

// Anonymous reports whether no token is available.
func (c *GitHubCredentials) Anonymous() bool {
	return c == nil || c.Token == ""
}

// StaticVaultClient serves a token given on the command line.
type StaticVaultClient struct {
	Username string
	Token    string
}

func (v *StaticVaultClient) GetGitHubCredentials() (*GitHubCredentials, error) {
	if v.Token == "" {
		return nil, fmt.Errorf("token do GitHub vazio")
	}
	username := v.Username
	if username == "" {
		username = "x-access-token"
	}
	return &GitHubCredentials{Username: username, Token: v.Token}, nil
}

// EnvVaultClient reads GITHUB_USERNAME and GITHUB_TOKEN.
type EnvVaultClient struct{}

func (v *EnvVaultClient) GetGitHubCredentials() (*GitHubCredentials, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("credenciais do GitHub não encontradas")
	}
	username := os.Getenv("GITHUB_USERNAME")
	if username == "" {
		username = "x-access-token"
	}
	return &GitHubCredentials{Username: username, Token: token}, nil
}

// NoOpVaultClient is used for unauthenticated runs.
type NoOpVaultClient struct{}

func (v *NoOpVaultClient) GetGitHubCredentials() (*GitHubCredentials, error) {
	return &GitHubCredentials{}, nil
}

// Resolve picks the first source that yields a token, falling back to
// anonymous access.
func Resolve(token string) VaultClient {
	if token != "" {
		return &StaticVaultClient{Token: token}
	}
	if _, err := (&EnvVaultClient{}).GetGitHubCredentials(); err == nil {
		return &EnvVaultClient{}
	}
	return &NoOpVaultClient{}
}
