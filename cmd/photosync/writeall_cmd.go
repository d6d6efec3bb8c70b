package main

import (
	"github.com/spf13/cobra"

	"photosync/internal/config"
	"photosync/internal/models"
	"photosync/internal/pipeline"
	"photosync/internal/syncerr"
	"photosync/internal/workflow"
)

func newWriteAllCmd(cfg *config.Config) *cobra.Command {
	var (
		steps       string
		dryRun      bool
		incremental bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "writeall [field]",
		Short: "Run a workflow of sync stages, optionally resetting a field first",
		Long: "Run the stages named by --workflow in the order import, upload, download, export. " +
			"Stages: import, upload (toblobstore), download (fromblobstore), export; " +
			"azure or blob selects upload and download, all selects every stage. " +
			"When field (imageData or blobPath) is given it is cleared on every record first. " +
			"--dry-run only reports what would happen.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildWorkflowRequest(cfg, optionalArg(args), steps, dryRun, incremental, force)
			if err != nil {
				return err
			}
			run := func(eng *engine) error {
				res, err := eng.workflow.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				if err := writeWorkflow(res); err != nil {
					return err
				}
				return workflowOutcome(res)
			}
			if dryRun {
				return withPreview(cmd.Context(), cfg, run)
			}
			needBlobs := req.Stages.Has(workflow.StageUpload) || req.Stages.Has(workflow.StageDownload)
			return withEngine(cmd.Context(), cfg, engineOptions{blobs: needBlobs}, run)
		},
	}

	cmd.Flags().StringVar(&steps, "workflow", "all", "comma separated stages to run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report candidate counts without changing anything")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "export only records changed since their last export")
	cmd.Flags().BoolVar(&force, "force", false, "force re-upload and full export")
	return cmd
}

func buildWorkflowRequest(cfg *config.Config, field, steps string, dryRun, incremental, force bool) (workflow.Request, error) {
	stages, err := workflow.ParseStages(steps)
	if err != nil {
		return workflow.Request{}, err
	}
	req := workflow.Request{
		Stages: stages,
		DryRun: dryRun,
		Import: cfg.ImportOptions(""),
		Upload: pipeline.UploadOptions{Force: force},
	}
	if field != "" {
		parsed, err := models.ParseField(field)
		if err != nil {
			return workflow.Request{}, &syncerr.InvalidFieldError{Field: field}
		}
		req.ClearField = parsed
	}
	req.Export, err = cfg.ExportOptions("", incremental, force)
	if err != nil {
		return workflow.Request{}, err
	}
	return req, nil
}

// workflowOutcome maps a result to the exit status. A dry run fails only
// when a preview could not be computed.
func workflowOutcome(res workflow.Result) error {
	if res.DryRun {
		for _, sr := range res.Stages {
			if !sr.Succeeded() {
				return &runFailedError{what: "workflow preview"}
			}
		}
		return nil
	}
	if !res.Success {
		return &runFailedError{what: "workflow"}
	}
	return nil
}
