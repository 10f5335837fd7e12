package middleware

import (
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
)

// Procesador de aportes recurrentes compartido con el worker de fondo
var recurringProcessor *services.RecurringProcessor

func InitAdmin(processor *services.RecurringProcessor) {
	recurringProcessor = processor
}
