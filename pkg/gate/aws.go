package gate

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
)

// AwsSession builds the shared AWS session the broker clients hang off.
// Shared config is honoured so named profiles, SSO and assume-role chains
// work; MFA prompts fall back to stdin.
func AwsSession(profile, region string) (*session.Session, error) {
	sessOpts := session.Options{
		Profile:                 profile,
		SharedConfigState:       session.SharedConfigEnable,
		AssumeRoleTokenProvider: stscreds.StdinTokenProvider,
	}
	if region != "" {
		sessOpts.Config = aws.Config{Region: aws.String(region)}
	}

	sess, err := session.NewSessionWithOptions(sessOpts)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}

	return sess, nil
}
