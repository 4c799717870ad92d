package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
	"github.com/davicafu/ordelab/shared/platform/persistence"
)

func newOutboxFixture(t *testing.T) *OutboxRepoSQLite {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "outbox_test.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	assert.NoError(t, InitSQLite(db))

	return NewOutboxRepoSQLite(db, sharedEvents.NewOrderingRegistry())
}

// saveInTx escribe la entrada dentro de una transacción confirmada, como
// haría el unit of work.
func saveInTx(t *testing.T, repo *OutboxRepoSQLite, entry sharedDomain.OutboxEntry) {
	t.Helper()

	tx, err := repo.db.Begin()
	assert.NoError(t, err)
	ctx := persistence.WithTx(context.Background(), tx)
	assert.NoError(t, repo.SaveEvent(ctx, entry))
	assert.NoError(t, tx.Commit())
}

func paidEntry(t *testing.T, transactionID uuid.UUID, createdAt time.Time) sharedDomain.OutboxEntry {
	t.Helper()

	envelope, err := sharedEvents.NewIntegrationEvent(sharedEvents.OrderPaid,
		sharedEvents.OrderPaidEvent{OrderID: uuid.New(), Status: "paid", BuyerName: "Ada"})
	assert.NoError(t, err)

	entry := sharedDomain.NewOutboxEntry(envelope, transactionID)
	entry.CreationTime = createdAt
	return entry
}

func TestOutboxSQLite_SaveEventExigeTransaccion(t *testing.T) {
	repo := newOutboxFixture(t)

	entry := paidEntry(t, uuid.New(), time.Now().UTC())
	err := repo.SaveEvent(context.Background(), entry)

	assert.ErrorContains(t, err, "requires an open transaction")
}

func TestOutboxSQLite_CicloDeEstados(t *testing.T) {
	repo := newOutboxFixture(t)
	transactionID := uuid.New()
	entry := paidEntry(t, transactionID, time.Now().UTC())
	saveInTx(t, repo, entry)

	ctx := context.Background()

	// MarkInProgress incrementa times_sent; el resto solo cambia el estado.
	assert.NoError(t, repo.MarkInProgress(ctx, entry.EventID))
	assert.NoError(t, repo.MarkInProgress(ctx, entry.EventID))
	assert.NoError(t, repo.MarkPublished(ctx, entry.EventID))

	var state string
	var timesSent int
	err := repo.db.QueryRow(`SELECT state, times_sent FROM outbox WHERE event_id=?`,
		entry.EventID.String()).Scan(&state, &timesSent)
	assert.NoError(t, err)
	assert.Equal(t, string(sharedDomain.OutboxPublished), state)
	assert.Equal(t, 2, timesSent)
}

func TestOutboxSQLite_MarkSobreEntradaInexistente(t *testing.T) {
	repo := newOutboxFixture(t)

	err := repo.MarkPublished(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "outbox entry not found")
}

func TestOutboxSQLite_RetrievePendingPorTransaccion(t *testing.T) {
	repo := newOutboxFixture(t)
	ctx := context.Background()
	transactionID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	second := paidEntry(t, transactionID, base.Add(time.Second))
	first := paidEntry(t, transactionID, base)
	other := paidEntry(t, uuid.New(), base)
	published := paidEntry(t, transactionID, base.Add(2*time.Second))

	saveInTx(t, repo, second)
	saveInTx(t, repo, first)
	saveInTx(t, repo, other)
	saveInTx(t, repo, published)
	assert.NoError(t, repo.MarkInProgress(ctx, published.EventID))
	assert.NoError(t, repo.MarkPublished(ctx, published.EventID))

	pending, err := repo.RetrievePendingForTransaction(ctx, transactionID)
	assert.NoError(t, err)

	// Solo not_published de ESA transacción, ordenadas por creation_time.
	assert.Len(t, pending, 2)
	assert.Equal(t, first.EventID, pending[0].EventID)
	assert.Equal(t, second.EventID, pending[1].EventID)
}

func TestOutboxSQLite_RetrievePendingRechazaTipoDesconocido(t *testing.T) {
	repo := newOutboxFixture(t)
	transactionID := uuid.New()

	entry := paidEntry(t, transactionID, time.Now().UTC())
	entry.EventType = "ordering.legacy_event"
	saveInTx(t, repo, entry)

	_, err := repo.RetrievePendingForTransaction(context.Background(), transactionID)
	assert.ErrorIs(t, err, sharedEvents.ErrUnknownEventType)
}

func TestOutboxSQLite_ListUnpublishedBefore(t *testing.T) {
	repo := newOutboxFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := paidEntry(t, uuid.New(), now.Add(-5*time.Minute))
	recent := paidEntry(t, uuid.New(), now.Add(-5*time.Second))
	failed := paidEntry(t, uuid.New(), now.Add(-5*time.Minute))

	saveInTx(t, repo, old)
	saveInTx(t, repo, recent)
	saveInTx(t, repo, failed)
	assert.NoError(t, repo.MarkFailed(ctx, failed.EventID))

	orphans, err := repo.ListUnpublishedBefore(ctx, now.Add(-time.Minute), 10)
	assert.NoError(t, err)

	// Solo not_published anteriores al corte: ni recientes ni published_failed.
	assert.Len(t, orphans, 1)
	assert.Equal(t, old.EventID, orphans[0].EventID)
	assert.Equal(t, sharedDomain.OutboxNotPublished, orphans[0].State)
}
