package models

import (
	"time"
)

// Queue states of a row in clientes.
const (
	StatusRegistered = "cadastrado"
	StatusPending    = "pendente"
	StatusProcessing = "processando"
	StatusCompleted  = "concluido"
)

// Intake is the profile a customer submits at signup.
type Intake struct {
	Altura   float64 `json:"altura"`
	Peso     float64 `json:"peso"`
	Idade    int     `json:"idade"`
	Objetivo string  `json:"objetivo"`
	Dias     int     `json:"dias"`
	Meses    int     `json:"meses"`
	Nivel    string  `json:"nivel"`
	Email    string  `json:"email"`
}

// Customer is one row of the clientes table.
type Customer struct {
	ID int64 `json:"user_id"`
	Intake
	Status        string     `json:"status,omitempty"`
	DataPagamento *time.Time `json:"data_pagamento,omitempty"`
	// Attempts counts failed plan deliveries.
	Attempts  int        `json:"tentativas,omitempty"`
	RetryAt   *time.Time `json:"retry_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
