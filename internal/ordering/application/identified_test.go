package application

import (
	"context"
	"errors"
	"testing"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/davicafu/ordelab/tests/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type fakeCmd struct{ OrderID uuid.UUID }

func identifiedForTest(store sharedDomain.ClientRequestStore, handler func(ctx context.Context, cmd fakeCmd) (bool, error)) func(context.Context, uuid.UUID, fakeCmd) (bool, error) {
	return Identified(zap.NewNop(), store, "test_command",
		func(fakeCmd) bool { return true }, handler)
}

func TestIdentified_PrimeraVezEjecutaElHandler(t *testing.T) {
	store := new(mocks.MockClientRequestStore)
	reqID := uuid.New()

	store.On("Exists", mock.Anything, reqID).Return(false, nil).Once()
	store.On("Create", mock.Anything, reqID, "test_command").Return(nil).Once()

	calls := 0
	cmd := identifiedForTest(store, func(ctx context.Context, c fakeCmd) (bool, error) {
		calls++
		return true, nil
	})

	ok, err := cmd(context.Background(), reqID, fakeCmd{OrderID: uuid.New()})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
	store.AssertExpectations(t)
}

func TestIdentified_DuplicadoNoRepiteEfectos(t *testing.T) {
	store := new(mocks.MockClientRequestStore)
	reqID := uuid.New()

	store.On("Exists", mock.Anything, reqID).Return(true, nil).Once()

	calls := 0
	cmd := identifiedForTest(store, func(ctx context.Context, c fakeCmd) (bool, error) {
		calls++
		return true, nil
	})

	ok, err := cmd(context.Background(), reqID, fakeCmd{})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, calls)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestIdentified_CarreraPerdidaDevuelveDuplicado(t *testing.T) {
	store := new(mocks.MockClientRequestStore)
	reqID := uuid.New()

	// Otro envío idéntico ganó el insert entre el Exists y el Create.
	store.On("Exists", mock.Anything, reqID).Return(false, nil).Once()
	store.On("Create", mock.Anything, reqID, "test_command").Return(sharedDomain.ErrRequestAlreadyExists).Once()

	calls := 0
	cmd := identifiedForTest(store, func(ctx context.Context, c fakeCmd) (bool, error) {
		calls++
		return true, nil
	})

	ok, err := cmd(context.Background(), reqID, fakeCmd{})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, calls)
	store.AssertExpectations(t)
}

func TestIdentified_ErrorDelHandlerSeTragaYDevuelveValorPorDefecto(t *testing.T) {
	store := new(mocks.MockClientRequestStore)
	reqID := uuid.New()

	store.On("Exists", mock.Anything, reqID).Return(false, nil).Once()
	store.On("Create", mock.Anything, reqID, "test_command").Return(nil).Once()

	cmd := identifiedForTest(store, func(ctx context.Context, c fakeCmd) (bool, error) {
		return false, errors.New("db is down")
	})

	// Comportamiento heredado: el error no se propaga, pero un fallo real
	// nunca se promociona al resultado duplicado (éxito).
	ok, err := cmd(context.Background(), reqID, fakeCmd{})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentified_ErrorDelStoreSePropaga(t *testing.T) {
	store := new(mocks.MockClientRequestStore)
	reqID := uuid.New()

	store.On("Exists", mock.Anything, reqID).Return(false, errors.New("connection refused")).Once()

	cmd := identifiedForTest(store, func(ctx context.Context, c fakeCmd) (bool, error) {
		t.Fatal("handler no debería ejecutarse")
		return false, nil
	})

	_, err := cmd(context.Background(), reqID, fakeCmd{})
	assert.Error(t, err)
}
