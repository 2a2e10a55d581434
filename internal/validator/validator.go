// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"loanflow/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("loan_status", validateLoanStatus)
		_ = v.RegisterValidation("documentation_type", validateDocumentationType)
		_ = v.RegisterValidation("property_type", validatePropertyType)
		_ = v.RegisterValidation("request_type", validateRequestType)
		_ = v.RegisterValidation("user_role", validateUserRole)
		_ = v.RegisterValidation("document_category", validateDocumentCategory)
	}
}

func validateLoanStatus(fl validator.FieldLevel) bool {
	return models.IsValidStatus(models.LoanStatus(fl.Field().String()))
}

func validateDocumentationType(fl validator.FieldLevel) bool {
	switch models.DocumentationType(fl.Field().String()) {
	case models.DocTypeFullDoc, models.DocTypeLightDoc, models.DocTypeBankStatement, models.DocTypeNoDoc:
		return true
	}
	return false
}

func validatePropertyType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "single_family", "multi_family", "mixed_use", "office", "retail", "industrial", "hospitality", "land":
		return true
	}
	return false
}

func validateRequestType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "purchase", "refinance", "cash_out_refinance", "construction", "bridge":
		return true
	}
	return false
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).IsValid()
}

func validateDocumentCategory(fl validator.FieldLevel) bool {
	switch models.DocumentCategory(fl.Field().String()) {
	case models.CategoryFinancial, models.CategoryProperty, models.CategoryIdentity, models.CategoryGeneral:
		return true
	}
	return false
}
