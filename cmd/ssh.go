package cmd

import (
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2instanceconnect"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DanSipola/aws-gate/pkg/gate"
)

var sshCmd = &cobra.Command{
	Use:   "ssh <instance> [-- command...]",
	Short: "Open an SSH session to an instance over Session Manager",
	Long: `
Opens an SSH session without a standing key or an open inbound port. A fresh
keypair is generated for the session, authorized via EC2 Instance Connect for
roughly 60 seconds, and the connection is proxied through Session Manager by
session-manager-plugin. The instance can be named by id, DNS name, IP
address, Name tag or a host alias from the config file.

Note: the trust grant propagates to the instance asynchronously, so a
connection attempt made immediately after may be rejected once; rerunning
the command is the remedy.
`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		osUser, _ := cmd.Flags().GetString("os-user")
		port, _ := cmd.Flags().GetInt("port")
		keyType, _ := cmd.Flags().GetString("key-type")
		keySize, _ := cmd.Flags().GetInt("key-size")
		agentMode, _ := cmd.Flags().GetBool("agent")
		pluginPath, _ := cmd.Flags().GetString("plugin-path")

		exit, err := openSSHSession(args[0], osUser, port, keyType, keySize, agentMode, pluginPath, args[1:])
		if err != nil {
			logger.Fatal("ssh session failed", "error", err)
		}
		os.Exit(exit)
	},
}

func openSSHSession(identifier, osUser string, port int, keyType string, keySize int, agentMode bool, pluginPath string, command []string) (int, error) {
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

	ec2Client := ec2.New(sess)
	ssmClient := ssm.New(sess)
	trustClient := ec2instanceconnect.New(sess)

	instanceID, err := gate.ResolveInstance(ec2Client, identifier)
	if err != nil {
		return 0, err
	}
	availabilityZone, err := gate.InstanceAvailabilityZone(ec2Client, instanceID)
	if err != nil {
		return 0, err
	}

	orchestrator := &gate.Orchestrator{
		Clients: gate.Clients{
			TrustBroker:     trustClient,
			SessionBroker:   ssmClient,
			SessionEndpoint: ssmClient.Endpoint,
		},
		Logger: logger,
	}

	return orchestrator.Run(gate.SessionRequest{
		InstanceID:       instanceID,
		AvailabilityZone: availabilityZone,
		OSUser:           osUser,
		Port:             port,
		Region:           region,
		Profile:          profile,
		KeyAlgorithm:     gate.KeyAlgorithm(keyType),
		KeySize:          keySize,
		AgentMode:        agentMode,
		Debug:            viper.GetBool("debug"),
		PluginPath:       pluginPath,
		Command:          command,
	})
}

func init() {
	RootCmd.AddCommand(sshCmd)

	sshCmd.Flags().StringP("os-user", "l", gate.DefaultOSUser, "OS user to log in as on the instance")
	sshCmd.Flags().IntP("port", "P", gate.DefaultSSHPort, "Remote SSH server port")
	sshCmd.Flags().String("key-type", string(gate.DefaultKeyAlgorithm), "Ephemeral key algorithm (rsa or ed25519)")
	sshCmd.Flags().Int("key-size", gate.DefaultKeySize, "Ephemeral key size in bits (rsa only)")
	sshCmd.Flags().BoolP("agent", "A", false, "Hold the ephemeral key in ssh-agent instead of on disk")
	sshCmd.Flags().String("plugin-path", gate.DefaultPluginPath, "Path to session-manager-plugin")
}
