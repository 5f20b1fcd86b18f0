package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/CleanExpo/Disaster-Recovery-sub021/config"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/dispatch"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/registry"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/logger"
	infranotify "github.com/CleanExpo/Disaster-Recovery-sub021/infra/notify"
	"github.com/CleanExpo/Disaster-Recovery-sub021/internal/eventbus"
)

var (
	dispatchService  string
	dispatchUrgency  string
	dispatchPostcode string
	dispatchSuburb   string
	dispatchState    string
	dispatchValue    float64
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Inject a test job against the configured roster",
	RunE:  dispatchJob,
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchService, "service", "water_damage", "service type")
	dispatchCmd.Flags().StringVar(&dispatchUrgency, "urgency", "urgent", "urgency level")
	dispatchCmd.Flags().StringVar(&dispatchPostcode, "postcode", "4000", "job postcode")
	dispatchCmd.Flags().StringVar(&dispatchSuburb, "suburb", "Brisbane", "job suburb")
	dispatchCmd.Flags().StringVar(&dispatchState, "state", "QLD", "job state")
	dispatchCmd.Flags().Float64Var(&dispatchValue, "value", 5000, "estimated job value")
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchJob(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("dispatch-command")
	reg, err := registry.LoadRoster(cfg.Roster.Path)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	bus := eventbus.New()
	manager, err := dispatch.NewManager(cfg.Dispatch, reg, infranotify.NewLogNotifier(), dispatch.NewMemoryRecordStore(), nil, bus, logg, nil)
	if err != nil {
		return fmt.Errorf("dispatch manager: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logg.Errorf("manager close: %v", err)
		}
	}()

	serviceType, err := model.ParseServiceType(dispatchService)
	if err != nil {
		return err
	}
	urgency, err := model.ParseUrgency(dispatchUrgency)
	if err != nil {
		return err
	}
	job := model.Job{
		ID:          uuid.NewString(),
		ServiceType: serviceType,
		Urgency:     urgency,
		Location: model.Location{
			Suburb:   dispatchSuburb,
			State:    dispatchState,
			Postcode: dispatchPostcode,
		},
		EstimatedValue: dispatchValue,
		CreatedAt:      time.Now(),
	}

	res, err := manager.DispatchJob(ctx, job)
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", job.ID, err)
	}
	logg.Infof("job %s round %d: notified %d contractors, expires %s",
		res.JobID, res.Round, len(res.Notified), res.ExpiresAt.Format(time.RFC3339))
	for _, n := range res.Notified {
		logg.Infof("  %s score=%.1f", n.ContractorID, n.Score)
	}
	return nil
}
