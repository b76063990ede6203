package cmd

import (
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DanSipola/aws-gate/pkg/gate"
)

var sessionCmd = &cobra.Command{
	Use:   "session <instance>",
	Short: "Open a plain Session Manager shell on an instance",
	Long: `
Opens an interactive Session Manager shell without SSH: no key material and
no trust grant are involved, just the broker channel driven by
session-manager-plugin attached to your terminal.
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pluginPath, _ := cmd.Flags().GetString("plugin-path")

		exit, err := openShellSession(args[0], pluginPath)
		if err != nil {
			logger.Fatal("session failed", "error", err)
		}
		os.Exit(exit)
	},
}

func openShellSession(identifier, pluginPath string) (int, error) {
	profile := viper.GetString("profile")
	region := viper.GetString("region")

	var hosts []gate.Host
	viper.UnmarshalKey("hosts", &hosts)
	identifier, profile, region = gate.ResolveTarget(hosts, identifier, profile, region)

	sess, err := gate.AwsSession(profile, region)
	if err != nil {
		return 0, err
	}
	region = aws.StringValue(sess.Config.Region)

	ssmClient := ssm.New(sess)

	instanceID, err := gate.ResolveInstance(ec2.New(sess), identifier)
	if err != nil {
		return 0, err
	}

	descriptor := gate.DescribeShellSession(instanceID)
	startResp, err := ssmClient.StartSession(descriptor.StartSessionInput())
	if err != nil {
		return 0, err
	}

	pluginArgs, err := gate.PluginArgs(startResp, descriptor, region, profile, ssmClient.Endpoint)
	if err != nil {
		return 0, err
	}

	logger.Info("opening session", "instance", instanceID, "region", region, "profile", profile)

	return gate.ExecRunner{}.Run(append([]string{pluginPath}, pluginArgs...))
}

func init() {
	RootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().String("plugin-path", gate.DefaultPluginPath, "Path to session-manager-plugin")
}
