package model_test

import (
	"testing"

	"go-ticket-reservation/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestSessionState_IsValid(t *testing.T) {
	assert.True(t, model.SessionStateRunning.IsValid())
	assert.True(t, model.SessionStateCancelled.IsValid())
	assert.False(t, model.SessionState("unknown").IsValid())
}

func TestSessionState_IsTerminal(t *testing.T) {
	assert.False(t, model.SessionStateIdle.IsTerminal())
	assert.False(t, model.SessionStateRunning.IsTerminal())
	assert.True(t, model.SessionStateCommitted.IsTerminal())
	assert.True(t, model.SessionStateExpired.IsTerminal())
	assert.True(t, model.SessionStateCancelled.IsTerminal())
}

func TestSessionState_CanTransitionTo(t *testing.T) {
	assert.True(t, model.SessionStateIdle.CanTransitionTo(model.SessionStateRunning))
	assert.True(t, model.SessionStateRunning.CanTransitionTo(model.SessionStateCommitted))
	assert.True(t, model.SessionStateRunning.CanTransitionTo(model.SessionStateExpired))
	assert.True(t, model.SessionStateRunning.CanTransitionTo(model.SessionStateCancelled))

	// 終態互斥
	assert.False(t, model.SessionStateCommitted.CanTransitionTo(model.SessionStateExpired))
	assert.False(t, model.SessionStateExpired.CanTransitionTo(model.SessionStateRunning))
	assert.False(t, model.SessionStateCancelled.CanTransitionTo(model.SessionStateCommitted))
	assert.False(t, model.SessionStateIdle.CanTransitionTo(model.SessionStateCommitted))
}

func TestBuyerInfo_IsComplete(t *testing.T) {
	complete := model.BuyerInfo{
		Name:         "Ana",
		Email:        "ana@test.com",
		ConfirmEmail: "ana@test.com",
		BirthDate:    "1995-04-02",
	}
	assert.True(t, complete.IsComplete())

	missing := complete
	missing.BirthDate = ""
	assert.False(t, missing.IsComplete())
}

func TestBuyerInfo_EmailsMatch(t *testing.T) {
	buyer := model.BuyerInfo{Email: "ana@test.com", ConfirmEmail: "ana@test.com"}
	assert.True(t, buyer.EmailsMatch())

	buyer.ConfirmEmail = "other@test.com"
	assert.False(t, buyer.EmailsMatch())
}
