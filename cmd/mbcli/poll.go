package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	modbus "github.com/thinkgos/mbus"
	"github.com/thinkgos/mbus/internal/config"
	"github.com/thinkgos/mbus/mb"
)

func newPollCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Read the jobs of the config file periodically",
		Long: `Poll runs every job of the config file at its scan rate and logs the values
read. Jobs larger than one request are split. Press Ctrl+C to stop.`,
		Example: `  mbcli poll -c plant.toml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if len(cfg.Jobs) == 0 {
				return errors.New("no jobs in config")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m, err := openMaster(ctx, cfg)
			if err != nil {
				return err
			}
			c, err := startPoll(modbus.NewClient(m), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			<-ctx.Done()
			return c.Close()
		},
	}
}

// startPoll schedules the jobs of cfg on c, c is closed on failure.
func startPoll(c modbus.Client, cfg *config.Config, log zerolog.Logger) (*mb.Client, error) {
	pc := mb.New(c,
		mb.WithLogger(log),
		mb.WithHandler(mb.FuncProc{
			Values: func(slaveID, funcCode byte, address, quality uint16, valBuf []byte) {
				log.Info().Uint8("slave", slaveID).Uint8("func", funcCode).
					Uint16("address", address).Uint16("quantity", quality).
					Hex("values", valBuf).Msg("gathered")
			},
			Result: func(err error, r *mb.Result) {
				if err != nil {
					log.Debug().Uint64("tx", r.TxCnt).Uint64("err", r.ErrCnt).
						Uint8("slave", r.SlaveID).Uint16("address", r.Address).Msg("result")
				}
			},
		}),
		mb.WithPanicHandle(func(v interface{}) {
			log.Error().Interface("panic", v).Msg("poll handler")
		}),
	)
	for _, job := range cfg.Jobs {
		funcCode, err := config.TableFuncCode(job.Table)
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
		err = pc.AddGatherJob(mb.Request{
			SlaveID:  job.SlaveID,
			FuncCode: funcCode,
			Address:  job.Address,
			Quantity: job.Quantity,
			ScanRate: job.ScanRate,
		})
		if err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	return pc, pc.Start()
}
