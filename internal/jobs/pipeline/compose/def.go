package compose

import (
	"gorm.io/gorm"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/repos"
	"github.com/inkwellhq/inkwell-backend/internal/services"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// Pipeline is the manuscript compose processor: it consumes one claimed
// compose job and turns verified ledger evidence into committed draft
// sections, one section at a time, in array order.
type Pipeline struct {
	db       *gorm.DB
	log      *logger.Logger
	tx       services.TxRunner
	ledger   repos.LedgerEntryRepo
	sections repos.DraftSectionRepo
	links    repos.DraftSectionCitationRepo
	store    services.VersionStoreService
	gen      services.DocumentGenerator
	activity services.ActivityService
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	tx services.TxRunner,
	ledger repos.LedgerEntryRepo,
	sections repos.DraftSectionRepo,
	links repos.DraftSectionCitationRepo,
	store services.VersionStoreService,
	gen services.DocumentGenerator,
	activity services.ActivityService,
) *Pipeline {
	return &Pipeline{
		db:       db,
		log:      baseLog.With("job", types.JobTypeManuscriptCompose),
		tx:       tx,
		ledger:   ledger,
		sections: sections,
		links:    links,
		store:    store,
		gen:      gen,
		activity: activity,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeManuscriptCompose }
