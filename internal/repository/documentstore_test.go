package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runDocumentStoreSuite exercises the DocumentStore contract. Every backend
// runs it against a fresh store.
func runDocumentStoreSuite(t *testing.T, store DocumentStore) {
	ctx := context.Background()

	t.Run("Get missing", func(t *testing.T) {
		_, err := store.Get(ctx, CollectionActivities, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Create and Get", func(t *testing.T) {
		doc := Document{
			"NombreActividad": "Curso HTML y CSS",
			"A_Diseño":        false,
			"A_Diseño_user":   "",
		}
		require.NoError(t, store.Create(ctx, CollectionActivities, "JU-HTML", doc))

		got, err := store.Get(ctx, CollectionActivities, "JU-HTML")
		require.NoError(t, err)
		assert.Equal(t, "Curso HTML y CSS", got["NombreActividad"])
		assert.Equal(t, false, got["A_Diseño"])
		assert.Equal(t, "", got["A_Diseño_user"])
	})

	t.Run("Create duplicate", func(t *testing.T) {
		err := store.Create(ctx, CollectionActivities, "JU-HTML", Document{"NombreActividad": "other"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		got, err := store.Get(ctx, CollectionActivities, "JU-HTML")
		require.NoError(t, err)
		assert.Equal(t, "Curso HTML y CSS", got["NombreActividad"])
	})

	t.Run("Same key in another collection", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, CollectionCampus, "JU-HTML", Document{}))
		got, err := store.Get(ctx, CollectionCampus, "JU-HTML")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("CreateAll writes every document", func(t *testing.T) {
		err := store.CreateAll(ctx,
			Insert{Collection: CollectionActivities, Key: "B1", Data: Document{"NombreActividad": "Lote"}},
			Insert{Collection: CollectionCampus, Key: "B1", Data: Document{"C_ArmadoAula": false}},
		)
		require.NoError(t, err)

		got, err := store.Get(ctx, CollectionCampus, "B1")
		require.NoError(t, err)
		assert.Equal(t, false, got["C_ArmadoAula"])
		_, err = store.Get(ctx, CollectionActivities, "B1")
		assert.NoError(t, err)
	})

	t.Run("CreateAll writes nothing on conflict", func(t *testing.T) {
		err := store.CreateAll(ctx,
			Insert{Collection: CollectionActivities, Key: "B2", Data: Document{"NombreActividad": "Otro"}},
			Insert{Collection: CollectionCampus, Key: "B1", Data: Document{"C_ArmadoAula": true}},
		)
		assert.ErrorIs(t, err, ErrAlreadyExists)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, CollectionCampus, conflict.Collection)
		assert.Equal(t, "B1", conflict.Key)

		_, err = store.Get(ctx, CollectionActivities, "B2")
		assert.ErrorIs(t, err, ErrNotFound)
		got, err := store.Get(ctx, CollectionCampus, "B1")
		require.NoError(t, err)
		assert.Equal(t, false, got["C_ArmadoAula"])

		err = store.CreateAll(ctx,
			Insert{Collection: CollectionActivities, Key: "B1", Data: Document{}},
			Insert{Collection: CollectionCampus, Key: "B3", Data: Document{}},
		)
		assert.ErrorIs(t, err, ErrAlreadyExists)
		_, err = store.Get(ctx, CollectionCampus, "B3")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Update merges fields", func(t *testing.T) {
		err := store.Update(ctx, CollectionActivities, "JU-HTML", Document{
			"A_Diseño":           true,
			"A_Diseño_user":      "jdoe",
			"A_Diseño_timestamp": "2024-01-01T00:00:00Z",
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, CollectionActivities, "JU-HTML")
		require.NoError(t, err)
		assert.Equal(t, true, got["A_Diseño"])
		assert.Equal(t, "jdoe", got["A_Diseño_user"])
		assert.Equal(t, "2024-01-01T00:00:00Z", got["A_Diseño_timestamp"])
		assert.Equal(t, "Curso HTML y CSS", got["NombreActividad"], "unlisted fields stay")
	})

	t.Run("Update missing", func(t *testing.T) {
		err := store.Update(ctx, CollectionActivities, "nope", Document{"A_Diseño": true})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Get(ctx, CollectionActivities, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Query and List", func(t *testing.T) {
		for _, c := range []struct {
			key      string
			activity string
		}{
			{"C2", "JU-HTML"},
			{"C1", "JU-HTML"},
			{"C3", "JU-EXCEL"},
		} {
			require.NoError(t, store.Create(ctx, CollectionCommissions, c.key, Document{
				"Id_Comision":  c.key,
				"Id_Actividad": c.activity,
				"AñoComision":  2024,
			}))
		}

		got, err := store.Query(ctx, CollectionCommissions, "Id_Actividad", "JU-HTML")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "C1", got[0].Key)
		assert.Equal(t, "C2", got[1].Key)

		byYear, err := store.Query(ctx, CollectionCommissions, "AñoComision", 2024)
		require.NoError(t, err)
		assert.Len(t, byYear, 3)

		none, err := store.Query(ctx, CollectionCommissions, "Id_Actividad", "JU-NONE")
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := store.List(ctx, CollectionCommissions)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"C1", "C2", "C3"}, []string{all[0].Key, all[1].Key, all[2].Key})

		empty, err := store.List(ctx, CollectionDictation)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}
