// Package handleutterance is the Zeebe job worker that feeds chat turns from
// a BPMN process into the assistant.
package handleutterance

import (
	"context"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"inventory-assistant/internal/assistant/orchestrator"
	apperrors "inventory-assistant/internal/common/errors"
	"inventory-assistant/internal/common/logger"
)

const TaskType = "handle-utterance"

// Assistant is the orchestrator as seen by the worker.
type Assistant interface {
	Handle(ctx context.Context, utterance, conversationID string) (*orchestrator.Reply, error)
}

// CommandRetrier retries broker commands on transient failures.
// *camunda.Client satisfies it.
type CommandRetrier interface {
	ExecuteWithRetry(ctx context.Context, commandFunc func(context.Context) (interface{}, error), operationName string) (interface{}, error)
}

type Handler struct {
	config       *Config
	assistant    Assistant
	retrier      CommandRetrier
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

// NewHandler builds the worker. A nil retrier sends commands once.
func NewHandler(config *Config, assistant Assistant, retrier CommandRetrier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		assistant:    assistant,
		retrier:      retrier,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	return h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := inputSchema.DecodeInto(job.Variables, &input); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

// execute runs one turn. Collaborator failures already come back as a reply
// with ErrorCode set; only invalid input is an error here.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	reply, err := h.assistant.Handle(ctx, input.Utterance, input.ConversationID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyUtterance) || errors.Is(err, orchestrator.ErrMissingConversation) {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		return nil, apperrors.AsStandard(err)
	}

	h.logger.Info("utterance handled", map[string]interface{}{
		"conversationId": input.ConversationID,
		"tier":           string(reply.Tier),
		"category":       string(reply.Category),
		"suspended":      reply.Suspended,
		"errorCode":      reply.ErrorCode,
	})
	return outputFrom(reply, h.now()), nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}

	err = h.send(ctx, "complete-job", func(ctx context.Context) (interface{}, error) {
		return cmd.Send(ctx)
	})
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}

func (h *Handler) send(ctx context.Context, operation string, command func(context.Context) (interface{}, error)) error {
	if h.retrier == nil {
		_, err := command(ctx)
		return err
	}
	_, err := h.retrier.ExecuteWithRetry(ctx, command, operation)
	return err
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
