package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// secretsManagerAPI is the subset of the Secrets Manager client we use.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerResolver resolves awssm:// references from AWS Secrets Manager.
//
//	awssm:///prod/login-api          default region, whole SecretString
//	awssm://eu-west-1/prod/login-api explicit region
//	awssm:///prod/login-api#api_key  one key of a JSON SecretString
type AWSSecretsManagerResolver struct {
	// newClient builds a client for region ("" means the SDK default).
	// Replaced in tests.
	newClient func(ctx context.Context, region string) (secretsManagerAPI, error)
}

// Scheme returns "awssm".
func (r *AWSSecretsManagerResolver) Scheme() string {
	return "awssm"
}

// Resolve fetches the secret with GetSecretValue.
func (r *AWSSecretsManagerResolver) Resolve(ctx context.Context, reference string) (string, error) {
	region, secretID, key, err := parseAWSSMReference(reference)
	if err != nil {
		return "", err
	}

	newClient := r.newClient
	if newClient == nil {
		newClient = defaultSecretsManagerClient
	}
	client, err := newClient(ctx, region)
	if err != nil {
		return "", &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "loading AWS config: " + err.Error(),
			Fix:       "Configure credentials with `aws configure`, AWS_PROFILE or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY.",
			Cause:     err,
		}
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", classifyAWSSMError(err, reference, secretID)
	}
	if out.SecretString == nil {
		return "", &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "secret has no string value (binary secrets are not supported)",
		}
	}

	if key == "" {
		return *out.SecretString, nil
	}
	return jsonSecretField(*out.SecretString, key, reference)
}

func defaultSecretsManagerClient(ctx context.Context, region string) (secretsManagerAPI, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// parseAWSSMReference splits awssm://[region]/secret-id[#key].
func parseAWSSMReference(ref string) (region, secretID, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "awssm" {
		return "", "", "", &InvalidReferenceError{Reference: ref, Reason: "expected awssm://[region]/secret-id[#key]"}
	}
	secretID = strings.TrimPrefix(u.Path, "/")
	if secretID == "" {
		return "", "", "", &InvalidReferenceError{Reference: ref, Reason: "secret id is required"}
	}
	return u.Host, secretID, u.Fragment, nil
}

func jsonSecretField(secret, key, reference string) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return "", &InvalidReferenceError{
			Reference: reference,
			Reason:    "a #key was given but the secret is not a JSON object",
		}
	}
	v, ok := fields[key]
	if !ok {
		return "", &NotFoundError{Reference: reference, Backend: "AWS Secrets Manager"}
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func classifyAWSSMError(err error, reference, secretID string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &NotFoundError{Reference: reference, Backend: "AWS Secrets Manager"}
	}
	var decrypt *types.DecryptionFailure
	if errors.As(err, &decrypt) {
		return &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "secret could not be decrypted",
			Fix:       "Check kms:Decrypt permission on the key protecting " + secretID,
			Cause:     err,
		}
	}
	if strings.Contains(err.Error(), "AccessDenied") {
		return &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "access denied",
			Fix:       "Check IAM permissions for secretsmanager:GetSecretValue on " + secretID,
			Cause:     err,
		}
	}
	return &BackendError{
		Backend:   "AWS Secrets Manager",
		Reference: reference,
		Reason:    err.Error(),
		Cause:     err,
	}
}

func init() {
	Register(&AWSSecretsManagerResolver{})
}
