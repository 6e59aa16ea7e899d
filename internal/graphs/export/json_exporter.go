package export

import (
	"encoding/json"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

func ToJSON(g domain.Graph) ([]byte, error) {
	return json.Marshal(g)
}
