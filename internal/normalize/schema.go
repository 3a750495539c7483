package normalize

import (
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Schema maps source columns of one dataset onto canonical columns. Each
// canonical column lists its sources in priority order; the first source that
// yields a usable value wins.
type Schema struct {
	Dataset models.DatasetTag
	Columns map[string][]string
}

var schemas = map[models.DatasetTag]Schema{
	models.DatasetActive: {
		Dataset: models.DatasetActive,
		Columns: map[string][]string{
			models.ColContractID:      {"id_del_proceso", "referencia_del_proceso"},
			models.ColEntityName:      {"entidad", "nombre_entidad"},
			models.ColDepartment:      {"departamento_entidad"},
			models.ColContractType:    {"tipo_de_contrato", "modalidad_de_contratacion"},
			models.ColDescription:     {"descripci_n_del_procedimiento", "nombre_del_procedimiento"},
			models.ColStatus:          {"estado_del_procedimiento"},
			models.ColContractValue:   {"valor_total_adjudicacion", "precio_base"},
			models.ColSigningDate:     {"fecha_de_recepcion_de", "fecha_de_publicacion_del"},
			models.ColPublicationDate: {"fecha_de_publicacion", "fecha_de_publicacion_del"},
			models.ColDurationDays:    {"duracion"},
			models.ColCategoryCode:    {"codigo_principal_de_categoria"},
			models.ColPhase:           {"fase"},
			models.ColProcessURL:      {"urlproceso"},
		},
	},
	models.DatasetHistorical: {
		Dataset: models.DatasetHistorical,
		Columns: map[string][]string{
			models.ColContractID:      {"id_contrato", "referencia_del_contrato"},
			models.ColEntityName:      {"nombre_entidad"},
			models.ColDepartment:      {"departamento"},
			models.ColContractType:    {"tipo_de_contrato"},
			models.ColDescription:     {"descripcion_del_proceso", "objeto_del_contrato"},
			models.ColStatus:          {"estado_contrato"},
			models.ColContractValue:   {"valor_del_contrato"},
			models.ColSigningDate:     {"fecha_de_firma"},
			models.ColPublicationDate: {"fecha_de_inicio_del_contrato"},
			models.ColDurationDays:    {"duraci_n_del_contrato"},
			models.ColAddedDays:       {"dias_adicionados"},
			models.ColCategoryCode:    {"codigo_de_categoria_principal"},
			models.ColProcessURL:      {"urlproceso"},
		},
	},
}

// SchemaFor returns the mapping for tag.
func SchemaFor(tag models.DatasetTag) (Schema, bool) {
	s, ok := schemas[tag]
	return s, ok
}

// mapped reports whether source feeds any canonical column.
func (s Schema) mapped(source string) bool {
	for _, sources := range s.Columns {
		for _, src := range sources {
			if src == source {
				return true
			}
		}
	}
	return false
}
