package gate

import (
	"regexp"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/pkg/errors"
)

// InstanceDirectory is the slice of the EC2 API used to turn an operator's
// identifier into an instance id. *ec2.EC2 satisfies it.
type InstanceDirectory interface {
	DescribeInstances(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

var instanceIDPattern = regexp.MustCompile(`^i-[0-9a-f]{8,}$`)

// identifier shapes tried against running instances, most specific first
var resolutionFilters = []string{
	"dns-name",
	"private-dns-name",
	"ip-address",
	"private-ip-address",
	"tag:Name",
}

// ResolveInstance maps a human-supplied identifier (instance id, public or
// private DNS/IP, or Name tag) to a running instance id.
func ResolveInstance(dir InstanceDirectory, identifier string) (string, error) {
	if instanceIDPattern.MatchString(identifier) {
		return identifier, nil
	}

	for _, filterName := range resolutionFilters {
		input := &ec2.DescribeInstancesInput{
			Filters: []*ec2.Filter{
				{Name: aws.String(filterName), Values: aws.StringSlice([]string{identifier})},
				{Name: aws.String("instance-state-name"), Values: aws.StringSlice([]string{"running"})},
			},
		}

		resp, err := dir.DescribeInstances(input)
		if err != nil {
			return "", errors.Wrap(err, "describing instances")
		}

		var matches []string
		for _, reservation := range resp.Reservations {
			for _, instance := range reservation.Instances {
				matches = append(matches, aws.StringValue(instance.InstanceId))
			}
		}

		// sending the operator into an arbitrary one of several matching
		// instances is worse than failing
		if len(matches) > 1 {
			return "", &InstanceResolutionError{Identifier: identifier, Matches: matches}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
	}

	return "", &InstanceResolutionError{Identifier: identifier}
}

// InstanceAvailabilityZone looks up the zone the trust broker needs for the
// key upload.
func InstanceAvailabilityZone(dir InstanceDirectory, instanceID string) (string, error) {
	input := &ec2.DescribeInstancesInput{
		InstanceIds: aws.StringSlice([]string{instanceID}),
	}

	resp, err := dir.DescribeInstances(input)
	if err != nil {
		return "", errors.Wrap(err, "describing instance")
	}

	for _, reservation := range resp.Reservations {
		for _, instance := range reservation.Instances {
			if instance.Placement != nil {
				return aws.StringValue(instance.Placement.AvailabilityZone), nil
			}
		}
	}

	return "", &InstanceResolutionError{Identifier: instanceID}
}
