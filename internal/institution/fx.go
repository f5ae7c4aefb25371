package institution

import (
	"github.com/smallbiznis/lingohub/internal/institution/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("institution.repository",
	fx.Provide(repository.Provide),
)
