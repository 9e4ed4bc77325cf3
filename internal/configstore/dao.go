package configstore

import (
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal/cruise"
)

// systemUser is recorded as the author of changes made to the file outside
// the API.
const systemUser = "simple-cd"

// EntityConfigUpdateCommand is a single-entity modification of the
// configuration.
type EntityConfigUpdateCommand interface {
	// CanContinue authorizes the change and checks that the entity exists
	// and is fresh against current.
	CanContinue(current *cruise.CruiseConfig) bool
	// Update applies the change to a copy of the main configuration.
	Update(modified *cruise.CruiseConfig) error
	// IsValid validates the merged, preprocessed configuration and copies
	// errors back onto the command's entity.
	IsValid(preprocessed *cruise.CruiseConfig) bool
	ClearErrors()
	PreprocessedEntity() cruise.Validatable
}

// EditViewAware commands are handed the configuration before
// preprocessing ahead of CanContinue, for checks that compare against the
// entity as written.
type EditViewAware interface {
	UseEditView(editView *cruise.CruiseConfig)
}

// ConfigUpdateCheckFailedError is returned when a command refuses to
// continue. The command's result holds the reason.
type ConfigUpdateCheckFailedError struct{}

func (ConfigUpdateCheckFailedError) Error() string {
	return "config update check failed"
}

type ConfigChangedListener interface {
	OnConfigChange(config *cruise.CruiseConfig)
}

type entityChangedListener interface {
	OnEntityConfigChange(entity cruise.Validatable)
}

// EntityConfigChangedListener receives the saved entity after every
// successful update of an entity of type T, and the whole configuration
// after every reload.
type EntityConfigChangedListener[T cruise.Validatable] struct {
	OnEntity func(entity T)
	OnConfig func(config *cruise.CruiseConfig)
}

func (l EntityConfigChangedListener[T]) OnConfigChange(config *cruise.CruiseConfig) {
	if l.OnConfig != nil {
		l.OnConfig(config)
	}
}

func (l EntityConfigChangedListener[T]) OnEntityConfigChange(entity cruise.Validatable) {
	if e, ok := entity.(T); ok && l.OnEntity != nil {
		l.OnEntity(e)
	}
}

type ConfigChangedFunc func(config *cruise.CruiseConfig)

func (f ConfigChangedFunc) OnConfigChange(config *cruise.CruiseConfig) {
	f(config)
}

// GoConfigDao owns the in-memory configuration and serializes every write
// to it.
type GoConfigDao struct {
	ds        *FileDataSource
	versions  *VersionRepository
	encrypter cruise.Encrypter
	logger    *zap.Logger

	writeMu sync.Mutex

	mu                sync.RWMutex
	current           *cruise.CruiseConfig
	forEdit           *cruise.CruiseConfig
	editView          *cruise.CruiseConfig
	lastValidPartials []cruise.PartialConfig
	lastKnownPartials []cruise.PartialConfig

	listenersMu sync.RWMutex
	listeners   []ConfigChangedListener
}

func NewGoConfigDao(
	ds *FileDataSource,
	versions *VersionRepository,
	encrypter cruise.Encrypter,
	logger *zap.Logger,
) *GoConfigDao {
	return &GoConfigDao{
		ds:        ds,
		versions:  versions,
		encrypter: encrypter,
		logger:    logger,
	}
}

func (dao *GoConfigDao) RegisterListener(l ConfigChangedListener) {
	dao.listenersMu.Lock()
	defer dao.listenersMu.Unlock()
	dao.listeners = append(dao.listeners, l)
}

// CurrentConfig returns the merged, preprocessed configuration. Callers
// must not modify it.
func (dao *GoConfigDao) CurrentConfig() *cruise.CruiseConfig {
	dao.mu.RLock()
	defer dao.mu.RUnlock()
	return dao.current
}

// MergedConfigForEdit returns the main configuration merged with the
// partials in use, before templates and params are applied. Callers must
// not modify it.
func (dao *GoConfigDao) MergedConfigForEdit() *cruise.CruiseConfig {
	dao.mu.RLock()
	defer dao.mu.RUnlock()
	return dao.editView
}

// ConfigForEdit returns a copy of the main configuration.
func (dao *GoConfigDao) ConfigForEdit() (*cruise.CruiseConfig, error) {
	dao.mu.RLock()
	defer dao.mu.RUnlock()
	return cruise.Clone(dao.forEdit)
}

func (dao *GoConfigDao) MD5() string {
	dao.mu.RLock()
	defer dao.mu.RUnlock()
	if dao.forEdit == nil {
		return ""
	}
	return dao.forEdit.MD5
}

func (dao *GoConfigDao) Versions() *VersionRepository {
	return dao.versions
}

// LoadConfig reads the file, merging the last known partials and falling
// back to the last valid ones.
func (dao *GoConfigDao) LoadConfig() error {
	dao.writeMu.Lock()
	defer dao.writeMu.Unlock()
	return dao.load()
}

func (dao *GoConfigDao) load() error {
	known, valid := dao.partials()
	holder, content, err := dao.ds.Load(known)
	if err != nil && !samePartials(known, valid) {
		var invalid *cruise.InvalidConfigError
		if errors.As(err, &invalid) {
			dao.logger.Warn(
				"configuration invalid with last known partials, falling back to last valid partials",
				zap.Int("known", len(known)),
				zap.Int("valid", len(valid)),
				zap.Error(err),
			)
			holder, content, err = dao.ds.Load(valid)
		}
	}
	if err != nil {
		return err
	}

	dao.commit(content, holder.ForEdit, systemUser)
	dao.swap(holder.Config, holder.ForEdit)
	dao.logger.Info("configuration loaded", zap.String("md5", holder.ForEdit.MD5))
	dao.notifyConfigChanged(holder.Config)
	return nil
}

// Reload loads the file when its md5 on disk differs from the one in
// memory. It reports whether the configuration was reloaded.
func (dao *GoConfigDao) Reload() (bool, error) {
	dao.writeMu.Lock()
	defer dao.writeMu.Unlock()

	onDisk, err := dao.ds.MD5OnDisk()
	if err != nil {
		return false, err
	}
	if onDisk == dao.MD5() {
		return false, nil
	}
	dao.logger.Info("configuration file changed on disk", zap.String("md5", onDisk))
	if err := dao.load(); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateConfig applies cmd on behalf of user and saves the result.
func (dao *GoConfigDao) UpdateConfig(cmd EntityConfigUpdateCommand, user cruise.Username) error {
	dao.writeMu.Lock()
	defer dao.writeMu.Unlock()

	if ev, ok := cmd.(EditViewAware); ok {
		ev.UseEditView(dao.MergedConfigForEdit())
	}
	if !cmd.CanContinue(dao.CurrentConfig()) {
		return ConfigUpdateCheckFailedError{}
	}
	return dao.writeEntityWithLock(cmd, user)
}

func (dao *GoConfigDao) writeEntityWithLock(cmd EntityConfigUpdateCommand, user cruise.Username) error {
	dao.mu.RLock()
	modified, err := cruise.Clone(dao.forEdit)
	dao.mu.RUnlock()
	if err != nil {
		return err
	}
	modified.Partials = nil
	if err := cmd.Update(modified); err != nil {
		return err
	}
	if dao.encrypter != nil {
		if err := cruise.EncryptSecureProperties(modified, dao.encrypter); err != nil {
			return err
		}
	}

	known, valid := dao.partials()
	err = dao.trySavingEntity(cmd, user, modified, valid)
	if err == nil || len(known) == 0 || samePartials(known, valid) {
		return err
	}
	var invalid *cruise.InvalidConfigError
	if !errors.As(err, &invalid) {
		return err
	}

	dao.logger.Warn(
		"update failed on valid partials, falling back to last known partials",
		zap.Int("valid", len(valid)),
		zap.Int("known", len(known)),
		zap.Error(err),
	)
	cmd.ClearErrors()
	if fallbackErr := dao.trySavingEntity(cmd, user, modified, known); fallbackErr != nil {
		dao.logger.Warn(
			"update failed using fallback last known partials",
			zap.Int("known", len(known)),
			zap.Error(fallbackErr),
		)
		return err
	}
	dao.mu.Lock()
	dao.lastValidPartials = known
	dao.mu.Unlock()
	dao.logger.Info("update succeeded with last known partials", zap.Int("known", len(known)))
	return nil
}

func (dao *GoConfigDao) trySavingEntity(
	cmd EntityConfigUpdateCommand,
	user cruise.Username,
	modified *cruise.CruiseConfig,
	partials []cruise.PartialConfig,
) error {
	preprocessed, err := cruise.Merge(modified, partials)
	if err != nil {
		return err
	}
	if err := cruise.Preprocess(preprocessed); err != nil {
		return cruise.NewInvalidConfigError([]string{err.Error()})
	}
	if !cmd.IsValid(preprocessed) {
		errs := cruise.AllErrors(preprocessed)
		if entity := cmd.PreprocessedEntity(); len(errs) == 0 && entity != nil {
			errs = cruise.AllErrors(entity)
		}
		return cruise.NewInvalidConfigError(errs)
	}

	dao.logger.Info("[Configuration Changed] saving updated configuration", zap.String("user", user.Name))
	content, err := cruise.Marshal(modified)
	if err != nil {
		return err
	}
	md5 := cruise.MD5Of(content)
	if err := dao.ds.Write(content, dao.MD5()); err != nil {
		return err
	}
	modified.MD5 = md5
	preprocessed.MD5 = md5

	dao.commit(content, modified, user.Name)
	dao.swap(preprocessed, modified)
	if entity := cmd.PreprocessedEntity(); entity != nil {
		dao.notifyEntityChanged(entity)
	}
	return nil
}

// UpdatePartials replaces the partials merged from config repositories.
// A set that yields a valid configuration becomes the last valid set;
// otherwise only the last known set is updated and an error is returned.
func (dao *GoConfigDao) UpdatePartials(partials []cruise.PartialConfig) error {
	dao.writeMu.Lock()
	defer dao.writeMu.Unlock()

	dao.mu.Lock()
	dao.lastKnownPartials = partials
	forEdit := dao.forEdit
	dao.mu.Unlock()

	merged, err := cruise.Merge(forEdit, partials)
	if err != nil {
		return err
	}
	if err := cruise.Preprocess(merged); err != nil {
		return cruise.NewInvalidConfigError([]string{err.Error()})
	}
	if !cruise.ValidateTree(merged) {
		dao.logger.Warn("partials rejected", zap.Int("partials", len(partials)))
		return cruise.NewInvalidConfigError(cruise.AllErrors(merged))
	}
	merged.MD5 = forEdit.MD5
	editView := dao.mergeForEdit(forEdit, partials)

	dao.mu.Lock()
	dao.lastValidPartials = partials
	dao.current = merged
	dao.editView = editView
	dao.mu.Unlock()
	dao.notifyConfigChanged(merged)
	return nil
}

func (dao *GoConfigDao) LastValidPartials() []cruise.PartialConfig {
	_, valid := dao.partials()
	return valid
}

func (dao *GoConfigDao) LastKnownPartials() []cruise.PartialConfig {
	known, _ := dao.partials()
	return known
}

func (dao *GoConfigDao) partials() (known, valid []cruise.PartialConfig) {
	dao.mu.RLock()
	defer dao.mu.RUnlock()
	return dao.lastKnownPartials, dao.lastValidPartials
}

func (dao *GoConfigDao) swap(current, forEdit *cruise.CruiseConfig) {
	editView := dao.mergeForEdit(forEdit, current.Partials)
	dao.mu.Lock()
	defer dao.mu.Unlock()
	forEdit.Partials = nil
	dao.current = current
	dao.forEdit = forEdit
	dao.editView = editView
}

func (dao *GoConfigDao) mergeForEdit(forEdit *cruise.CruiseConfig, partials []cruise.PartialConfig) *cruise.CruiseConfig {
	editView, err := cruise.Merge(forEdit, partials)
	if err != nil {
		dao.logger.Error("merging partials into configuration for edit", zap.Error(err))
		editView, err = cruise.Clone(forEdit)
		if err != nil {
			return forEdit
		}
	}
	editView.MD5 = forEdit.MD5
	return editView
}

func (dao *GoConfigDao) commit(content []byte, c *cruise.CruiseConfig, username string) {
	if dao.versions == nil {
		return
	}
	if _, err := dao.versions.Commit(content, c.MD5, username, c.SchemaVersion); err != nil {
		dao.logger.Error("[Config Save] check-in failed", zap.String("md5", c.MD5), zap.Error(err))
	}
}

func (dao *GoConfigDao) snapshotListeners() []ConfigChangedListener {
	dao.listenersMu.RLock()
	defer dao.listenersMu.RUnlock()
	return slices.Clone(dao.listeners)
}

func (dao *GoConfigDao) notifyConfigChanged(c *cruise.CruiseConfig) {
	for _, l := range dao.snapshotListeners() {
		dao.safeNotify(func() { l.OnConfigChange(c) })
	}
}

func (dao *GoConfigDao) notifyEntityChanged(entity cruise.Validatable) {
	for _, l := range dao.snapshotListeners() {
		if el, ok := l.(entityChangedListener); ok {
			dao.safeNotify(func() { el.OnEntityConfigChange(entity) })
		}
	}
}

func (dao *GoConfigDao) safeNotify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			dao.logger.Error("configuration listener failed", zap.Any("panic", r))
		}
	}()
	fn()
}

func samePartials(a, b []cruise.PartialConfig) bool {
	return slices.EqualFunc(a, b, func(x, y cruise.PartialConfig) bool {
		return x.Origin == y.Origin && x.Revision == y.Revision
	})
}
