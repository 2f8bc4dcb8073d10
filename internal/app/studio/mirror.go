package studio

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/gateway"
	"github.com/adstudio/studio/internal/infra/sqlite"
)

// mirror forwards deductions and saves to the backend, then copies the
// outcome into the local sqlite store. The backend stays authoritative: a
// failed local write is logged and never fails the call.
type mirror struct {
	remote *gateway.Client
	local  *sqlite.DB
	log    *logrus.Entry
}

func (m *mirror) DeductCredits(ctx context.Context, userID string, amount int64, description string) error {
	if err := m.remote.DeductCredits(ctx, userID, amount, description); err != nil {
		return err
	}
	_, err := m.local.InsertTransaction(ctx, domain.CreditTransaction{
		UserID:      userID,
		Type:        domain.TxUsage,
		Amount:      -amount,
		Status:      domain.TxCompleted,
		Description: description,
	})
	if err != nil {
		m.log.WithError(err).WithField("user_id", userID).Warn("local usage row not written")
	}
	return nil
}

func (m *mirror) SaveResult(ctx context.Context, toolID domain.ToolID, result json.RawMessage, inputs any, userID string) (string, error) {
	id, err := m.remote.SaveResult(ctx, toolID, result, inputs, userID)
	if err != nil {
		return "", err
	}
	var in json.RawMessage
	if inputs != nil {
		in, _ = json.Marshal(inputs)
	}
	_, err = m.local.InsertGeneration(ctx, domain.GenerationRecord{
		ID:     id,
		ToolID: toolID,
		UserID: userID,
		Inputs: in,
		Result: result,
	})
	if err != nil {
		m.log.WithError(err).WithField("tool_id", toolID).Warn("local generation row not written")
	}
	return id, nil
}

func (m *mirror) SavedResults(ctx context.Context, toolID domain.ToolID, userID string) ([]domain.GenerationRecord, error) {
	return m.remote.SavedResults(ctx, toolID, userID)
}
