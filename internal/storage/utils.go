package storage

func InitStore(dir string, logger Logger) (*SQLiteStore, error) {
	store, err := Open(dir, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
