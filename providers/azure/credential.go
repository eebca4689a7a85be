package azure

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Credential modes accepted by NewCredential.
const (
	CredentialDefault = "default"
	CredentialCLI     = "cli"
	CredentialBrowser = "browser"
)

// NewCredential builds the token credential for mode. "cli" reuses an
// `az login` session; "browser" runs the interactive login flow.
func NewCredential(mode string) (azcore.TokenCredential, error) {
	switch mode {
	case CredentialCLI:
		cred, err := azidentity.NewAzureCLICredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azure cli credential: %w", err)
		}
		return cred, nil
	case CredentialBrowser:
		cred, err := azidentity.NewInteractiveBrowserCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("interactive browser credential: %w", err)
		}
		return cred, nil
	case CredentialDefault, "":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("default azure credential: %w", err)
		}
		return cred, nil
	default:
		return nil, fmt.Errorf("unknown credential mode %q", mode)
	}
}
