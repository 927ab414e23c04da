package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/filings"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/submissions"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/useractions"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Filings(db dbx.DBTX) filings.Repository
	Submissions(db dbx.DBTX) submissions.Repository
	UserActions(db dbx.DBTX) useractions.Repository
}
