package statemachine

import (
	"fmt"
	"strings"

	"tecnoroute/internal/models"
)

const (
	ActorAdmin    = string(models.RoleAdmin)
	ActorCustomer = string(models.RoleUser)
	ActorDriver   = string(models.RoleDriver)
)

// Transition is a status change and the actor allowed to perform it.
type Transition struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor string
}

var validTransitions = []Transition{
	// a driver claims a pending order
	{From: models.OrderPending, To: models.OrderConfirmed, Actor: ActorDriver},
	{From: models.OrderConfirmed, To: models.OrderShipped, Actor: ActorDriver},
	{From: models.OrderConfirmed, To: models.OrderDelivered, Actor: ActorDriver},
	{From: models.OrderShipped, To: models.OrderDelivered, Actor: ActorDriver},

	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorCustomer},

	// admin manual cycle
	{From: models.OrderPending, To: models.OrderConfirmed, Actor: ActorAdmin},
	{From: models.OrderConfirmed, To: models.OrderShipped, Actor: ActorAdmin},
	{From: models.OrderShipped, To: models.OrderDelivered, Actor: ActorAdmin},
	{From: models.OrderDelivered, To: models.OrderPending, Actor: ActorAdmin},
	{From: models.OrderCancelled, To: models.OrderPending, Actor: ActorAdmin},
	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorAdmin},
	{From: models.OrderConfirmed, To: models.OrderCancelled, Actor: ActorAdmin},
	{From: models.OrderShipped, To: models.OrderCancelled, Actor: ActorAdmin},
}

type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor string
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom returns the distinct next states reachable from status.
func ValidTransitionsFrom(status models.OrderStatus, actor string) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && (actor == "" || t.Actor == actor) && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

func CanTransition(from, to models.OrderStatus, actor string) error {
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return fmt.Errorf("transición inválida: %s → %s no está permitida para %s. Estados válidos: %s",
		from, to, actor, describeValidFrom(from, actor))
}

func describeValidFrom(status models.OrderStatus, actor string) string {
	nexts := ValidTransitionsFrom(status, actor)
	if len(nexts) == 0 {
		return "ninguno"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
