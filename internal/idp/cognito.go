package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/dgellow/minidp/internal/log"
)

var _ Session = (*CognitoSession)(nil)

// cognitoAPI is the subset of the Cognito user pool API used here
type cognitoAPI interface {
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// CognitoSession checks sessions against the Cognito user pool API.
// GetUser and GlobalSignOut are authorised by the access token alone, so
// no AWS credentials are needed.
type CognitoSession struct {
	api cognitoAPI
}

// CognitoOptions configures the SDK client
type CognitoOptions struct {
	Region string
	// Endpoint overrides the regional endpoint (tests, local emulators)
	Endpoint   string
	HTTPClient *http.Client
}

// NewCognitoSession builds a session checker for region
func NewCognitoSession(opts CognitoOptions) (*CognitoSession, error) {
	if opts.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	o := cip.Options{
		Region:           opts.Region,
		Credentials:      aws.AnonymousCredentials{},
		RetryMaxAttempts: 1,
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	}
	if opts.HTTPClient != nil {
		o.HTTPClient = opts.HTTPClient
	}
	return &CognitoSession{api: cip.New(o)}, nil
}

func (c *CognitoSession) HasSession(ctx context.Context, accessToken string) (bool, error) {
	if accessToken == "" {
		return false, nil
	}
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		if errors.As(err, &notAuthorized) {
			log.LogDebugWithFields("idp", "Cognito rejected access token", map[string]any{
				"reason": notAuthorized.ErrorMessage(),
			})
			return false, nil
		}
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		logAPIError("GetUser", err)
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	log.LogTraceWithFields("idp", "Cognito session active", map[string]any{
		"username": aws.ToString(out.Username),
	})
	return true, nil
}

func (c *CognitoSession) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	_, err := c.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		if errors.As(err, &notAuthorized) {
			return nil
		}
		logAPIError("GlobalSignOut", err)
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func logAPIError(operation string, err error) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	log.LogWarnWithFields("idp", "Cognito request failed", map[string]any{
		"operation": operation,
		"code":      apiErr.ErrorCode(),
		"fault":     apiErr.ErrorFault().String(),
	})
}
