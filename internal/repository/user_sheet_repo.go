package repository

import (
	"context"

	"github.com/noah-isme/gestion-educativa-api/internal/models"
)

// Header names of the users sheet and the positions used when a header is absent.
const (
	userHeaderName   = "Nombre"
	userHeaderEmail  = "correo"
	userHeaderSecret = "contraseña"
	userHeaderAlias  = "alias"

	userDefaultName   = 0
	userDefaultEmail  = 1
	userDefaultSecret = 2
	userDefaultAlias  = 3
)

// UserRepository loads the users table.
type UserRepository interface {
	List(ctx context.Context) ([]models.User, error)
}

type sheetUserRepository struct {
	workbook *Workbook
	sheet    string
}

// NewSheetUserRepository reads users from the given sheet of the workbook.
func NewSheetUserRepository(workbook *Workbook, sheet string) UserRepository {
	return &sheetUserRepository{workbook: workbook, sheet: sheet}
}

func (r *sheetUserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.workbook.Rows(ctx, r.sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.User{}, nil
	}

	header := rows[0]
	nameIdx := headerIndex(header, userHeaderName, userDefaultName)
	emailIdx := headerIndex(header, userHeaderEmail, userDefaultEmail)
	secretIdx := headerIndex(header, userHeaderSecret, userDefaultSecret)
	aliasIdx := headerIndex(header, userHeaderAlias, userDefaultAlias)

	users := make([]models.User, 0, len(rows)-1)
	for _, row := range rows[1:] {
		users = append(users, models.User{
			Name:   cell(row, nameIdx),
			Email:  cell(row, emailIdx),
			Alias:  cell(row, aliasIdx),
			Secret: cell(row, secretIdx),
		})
	}
	return users, nil
}
