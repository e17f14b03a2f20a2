/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/ewspoller/pkg/kv"
	"github.com/carverauto/ewspoller/pkg/logger"
)

var errStoreDown = errors.New("store down")

func newFileStore(t *testing.T) *kv.FileStore {
	t.Helper()

	store, err := kv.NewFileStore(filepath.Join(t.TempDir(), "ewspoller.config.json"))
	require.NoError(t, err)

	return store
}

func TestLoadAppliesDefaultsAndSaves(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, 60*time.Second, m.UpdateInterval())

	raw, found, err := store.Get(ctx, "printer-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"update_interval":60}`, string(raw))
}

func TestLoadScrubsSensitiveKeys(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Put(ctx, "printer-1",
		[]byte(`{"update_interval":30,"username":"admin","password":"secret","theme":"dark"}`)))

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, 30*time.Second, m.UpdateInterval())
	assert.Equal(t, map[string]any{"update_interval": float64(30), "theme": "dark"}, m.Data())

	raw, _, err := store.Get(ctx, "printer-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"update_interval":30,"theme":"dark"}`, string(raw))
}

func TestLoadMigratesDefaultEntry(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Put(ctx, DefaultEntryID, []byte(`{"update_interval":300}`)))

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.NoError(t, m.Load(ctx))

	assert.Equal(t, 300*time.Second, m.UpdateInterval())

	_, found, err := store.Get(ctx, DefaultEntryID)
	require.NoError(t, err)
	assert.False(t, found)

	raw, found, err := store.Get(ctx, "printer-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"update_interval":300}`, string(raw))
}

func TestSetUpdateIntervalSavesOnlyOnChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	store := kv.NewMockKVStore(ctrl)

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), "printer-1").Return([]byte(`{"update_interval":60}`), true, nil),
		store.EXPECT().Put(gomock.Any(), "printer-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, value []byte) error {
				assert.JSONEq(t, `{"update_interval":120}`, string(value))
				return nil
			}),
	)

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.NoError(t, m.Load(ctx))

	require.NoError(t, m.SetUpdateInterval(ctx, 120*time.Second))
	require.NoError(t, m.SetUpdateInterval(ctx, 120*time.Second+400*time.Millisecond))

	assert.Equal(t, 120*time.Second, m.UpdateInterval())
}

func TestSetUpdateIntervalKeepsValueWhenSaveFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	store := kv.NewMockKVStore(ctrl)

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), "printer-1").Return([]byte(`{"update_interval":60}`), true, nil),
		store.EXPECT().Put(gomock.Any(), "printer-1", gomock.Any()).Return(errStoreDown),
	)

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.NoError(t, m.Load(ctx))

	require.ErrorIs(t, m.SetUpdateInterval(ctx, 120*time.Second), errStoreDown)

	assert.Equal(t, 60*time.Second, m.UpdateInterval())
	assert.InDelta(t, 60.0, m.Data()[KeyUpdateInterval], 0)
}

func TestSetUpdateIntervalValidation(t *testing.T) {
	m := NewManager(newFileStore(t), "", logger.NewTestLogger())
	assert.Equal(t, DefaultEntryID, m.EntryID())

	require.ErrorIs(t, m.SetUpdateInterval(context.Background(), time.Minute), errNotLoaded)

	require.NoError(t, m.Load(context.Background()))
	require.ErrorIs(t, m.SetUpdateInterval(context.Background(), 500*time.Millisecond), errInvalidInterval)
}

func TestLoadPropagatesStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := kv.NewMockKVStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "printer-1").Return(nil, false, errStoreDown)

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.ErrorIs(t, m.Load(context.Background()), errStoreDown)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t)

	require.NoError(t, store.Put(ctx, DefaultEntryID, []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "printer-1", []byte(`{"update_interval":90}`)))
	require.NoError(t, store.Put(ctx, "printer-2", []byte(`{"update_interval":45}`)))

	m := NewManager(store, "printer-1", logger.NewTestLogger())
	require.NoError(t, m.Remove(ctx))

	for _, id := range []string{DefaultEntryID, "printer-1"} {
		_, found, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, found, id)
	}

	_, found, err := store.Get(ctx, "printer-2")
	require.NoError(t, err)
	assert.True(t, found)
}
