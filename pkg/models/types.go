package models

import (
	"time"
)

/*
LOAD → types simples pour les enregistrements lus depuis les CSV ou la base de données.
*/

// Customer représente une inscription client; Created est déjà converti dans le fuseau configuré.
type Customer struct {
	ID      uint64
	Created time.Time
}

// Order représente une commande; UserID référence Customer.ID.
type Order struct {
	ID      uint64
	UserID  uint64
	Created time.Time
}

/*
CONFIG → paramètres passés au calcul des statistiques
*/
// Config contient les paramètres de la passe d'agrégation des commandes.
type Config struct {
	MaxWeeks int  // 0 = pas de limite; sinon les semaines >= MaxWeeks sont ignorées
	Verbose  bool // Flag pour activer les logs détaillés.
}
