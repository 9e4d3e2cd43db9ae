// Command salesctl runs the pricing, scheduling and status engine from the
// shell, without a database or broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-service/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v   *viper.Viper
	now func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), now: time.Now}

	root := &cobra.Command{
		Use:           "salesctl",
		Short:         "Price drafts, preview installment plans and classify payments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().String("config", "", "config file (default: ./salesctl.yaml)")
	root.PersistentFlags().String("tz", "America/Sao_Paulo", "reference time zone for today and due dates")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = a.v.BindPFlag("tz", root.PersistentFlags().Lookup("tz"))
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(a.priceCmd())
	root.AddCommand(a.scheduleCmd())
	root.AddCommand(a.statusCmd())
	return root
}

func (a *app) initConfig() error {
	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("salesctl")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("SALES")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := util.InitLogger("development"); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return util.SetLogLevel(a.v.GetString("log_level"))
}

func (a *app) location() (*time.Location, error) {
	name := a.v.GetString("tz")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	util.SyncLogger()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
