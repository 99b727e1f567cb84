package rediscache

const StoreIfCurrent = storeIfCurrent
