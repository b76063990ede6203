package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var logger = log.New(os.Stderr)

var RootCmd = &cobra.Command{
	Use:   "aws-gate",
	Short: "Open temporary SSH sessions to EC2 instances with no standing keys and no open ports",
	Long: `
aws-gate grants short-lived SSH access to instances: it mints an ephemeral
keypair, pushes the public half through EC2 Instance Connect (valid for about
a minute) and tunnels the SSH connection over a logged Session Manager
channel instead of an inbound network port. Key material and trust are torn
down when the session ends, however it ends.
`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aws-gate/config.yml)")
	RootCmd.PersistentFlags().StringP("profile", "p", "", "Name of profile in ~/.aws/config to use")
	RootCmd.PersistentFlags().StringP("region", "r", "", "AWS region of the target instance")
	RootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output (and verbose ssh)")

	viper.BindPFlag("profile", RootCmd.PersistentFlags().Lookup("profile"))
	viper.BindPFlag("region", RootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetConfigName("config")
	viper.AddConfigPath("$HOME/.aws-gate")
	viper.AutomaticEnv()

	viper.ReadInConfig()

	if viper.GetBool("debug") {
		logger.SetLevel(log.DebugLevel)
	}
}
